package logger

/*
	verbosity := 1 (0 = default, 1 = debug, 2 = trace)
	log := logger.New("[System]", verbosity)
	log.Info("Something noteworthy happened!")
	guildLog := log.WithPrefix(guild.Name())
	guildLog.Warn("You should probably take a look at this.")
	// Calls os.Exit(1) after logging
	log.Fatal("Bye.")
*/

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

type Logger struct {
	logger *logrus.Logger
	prefix string
	sinks  *sinks

	Verbosity int
}

//New returns a logger with the specified verbosity level.
// prefix: string: the prefix printed before every line
// verbosity: int: declares the verbosity level
//  - 0: default logging (info, warning, error)
//  - 1: includes 0, plus debug logging
//  - 2: includes 1, plus trace logging
func New(prefix string, verbosity int) *Logger {
	formatter := new(prefixed.TextFormatter)
	formatter.FullTimestamp = true

	log := logrus.New()
	log.Formatter = formatter

	switch {
	case verbosity >= 2:
		log.Level = logrus.TraceLevel
	case verbosity == 1:
		log.Level = logrus.DebugLevel
	default:
		log.Level = logrus.InfoLevel
	}

	return &Logger{
		logger:    log,
		prefix:    prefix,
		sinks:     &sinks{},
		Verbosity: verbosity,
	}
}

//WithPrefix returns a logger sharing the same output and sinks under another prefix
func (logger *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{
		logger:    logger.logger,
		prefix:    prefix,
		sinks:     logger.sinks,
		Verbosity: logger.Verbosity,
	}
}

//Prefix returns the prefix of this logger
func (logger *Logger) Prefix() string {
	return logger.prefix
}

//SetOutput redirects the console output
func (logger *Logger) SetOutput(w io.Writer) {
	logger.logger.SetOutput(w)
}

//AddFileSinks mirrors every entry into <dir>/<stamp>.log and warnings and
// errors into <dir>/<stamp>_errors.log, each file starting with header
func (logger *Logger) AddFileSinks(dir, stamp, header string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating log directory")
	}

	all, err := openSink(filepath.Join(dir, stamp+".log"), header)
	if err != nil {
		return err
	}
	errs, err := openSink(filepath.Join(dir, stamp+"_errors.log"), header)
	if err != nil {
		all.Close()
		return err
	}

	logger.sinks.add(all, errs)
	logger.logger.AddHook(newFileHook(all, logrus.AllLevels))
	logger.logger.AddHook(newFileHook(errs, []logrus.Level{
		logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel,
	}))
	return nil
}

//Close closes every file sink
func (logger *Logger) Close() error {
	return logger.sinks.close()
}

func (logger *Logger) entry() *logrus.Entry {
	return logger.logger.WithField("prefix", logger.prefix)
}

func (logger *Logger) Trace(args ...interface{}) {
	logger.entry().Trace(args...)
}
func (logger *Logger) Debug(args ...interface{}) {
	logger.entry().Debug(args...)
}
func (logger *Logger) Info(args ...interface{}) {
	logger.entry().Info(args...)
}
func (logger *Logger) Warn(args ...interface{}) {
	logger.entry().Warn(args...)
}
func (logger *Logger) Error(args ...interface{}) {
	logger.entry().Error(args...)
}
func (logger *Logger) Fatal(args ...interface{}) {
	logger.entry().Fatal(args...)
}

func (logger *Logger) Tracef(format string, args ...interface{}) {
	logger.entry().Tracef(format, args...)
}
func (logger *Logger) Debugf(format string, args ...interface{}) {
	logger.entry().Debugf(format, args...)
}
func (logger *Logger) Infof(format string, args ...interface{}) {
	logger.entry().Infof(format, args...)
}
func (logger *Logger) Warnf(format string, args ...interface{}) {
	logger.entry().Warnf(format, args...)
}
func (logger *Logger) Errorf(format string, args ...interface{}) {
	logger.entry().Errorf(format, args...)
}

type sinks struct {
	mu    sync.Mutex
	files []*os.File
}

func (s *sinks) add(files ...*os.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, files...)
}

func (s *sinks) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	for _, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.files = nil
	return first
}

func openSink(path, header string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "opening log file")
	}
	if header != "" {
		if _, err := fmt.Fprintln(f, header); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "writing log header")
		}
	}
	return f, nil
}
