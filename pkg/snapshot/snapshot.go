// Package snapshot saves video frames as PNG pictures.
package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/glvplay/glvplay/pkg/config"
	"github.com/glvplay/glvplay/pkg/layout"
	"github.com/glvplay/glvplay/pkg/logger"
	"github.com/gofrs/flock"
	"github.com/gofrs/uuid"
)

const lockFile = ".glvplay.lock"

// Saver writes pictures into a directory shared between players,
// writes are serialized with a file lock.
type Saver struct {
	conf config.Snapshot
	lock *flock.Flock
	log  *logger.Logger
}

// New makes a saver, the directory is created with the first picture.
func New(conf config.Snapshot, log *logger.Logger) (*Saver, error) {
	if conf.Dir == "" {
		return nil, errors.New("no snapshot dir")
	}
	return &Saver{
		conf: conf,
		lock: flock.New(filepath.Join(conf.Dir, lockFile)),
		log:  log.Module("snapshot"),
	}, nil
}

// Take saves the section of a w×h RGB24 frame shown at pos.
// Returns the file path.
func (s *Saver) Take(name string, frame []byte, w, h int, sec layout.Section, pos time.Duration) (string, error) {
	img := Scale(Crop(frame, w, h, sec), s.conf.Scale)
	if s.conf.Label {
		AddLabel(img, 2, 2, fmt.Sprintf("%v %v", name, TimeFormat(pos)))
	}
	path, err := s.save(name, img)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("file", path).Dur("at", pos).Msg("snapshot")
	return path, nil
}

func (s *Saver) save(name string, img image.Image) (_ string, err error) {
	if err = os.MkdirAll(s.conf.Dir, 0o755); err != nil {
		return "", err
	}
	if err = s.lock.Lock(); err != nil {
		return "", fmt.Errorf("lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	id := uuid.Must(uuid.NewV4()).String()[:8]
	path := filepath.Join(s.conf.Dir, fmt.Sprintf("%v-%v-%v.png", name, time.Now().Format("20060102-150405"), id))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err = png.Encode(w, img); err != nil {
		return "", err
	}
	if err = w.Flush(); err != nil {
		return "", err
	}
	return path, nil
}
