package logger

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

//fileHook writes entries of the given levels to w without colors
type fileHook struct {
	mu        sync.Mutex
	w         io.Writer
	levels    []logrus.Level
	formatter logrus.Formatter
}

func newFileHook(w io.Writer, levels []logrus.Level) *fileHook {
	formatter := new(prefixed.TextFormatter)
	formatter.FullTimestamp = true
	formatter.DisableColors = true

	return &fileHook{
		w:         w,
		levels:    levels,
		formatter: formatter,
	}
}

func (h *fileHook) Levels() []logrus.Level {
	return h.levels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(line)
	return err
}
