package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of a FileAppender.
const (
	fileAppenderMaxSizeMB  = 100
	fileAppenderMaxBackups = 3
)

// FileAppender writes console formatted lines to a file that is rotated once it grows past
// 100 MB, keeping three compressed backups.
type FileAppender struct {
	*ConsoleAppender
	file *lumberjack.Logger
}

// NewFileAppender creates an appender writing to path. The file is opened on the first write.
func NewFileAppender(path string) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    fileAppenderMaxSizeMB,
		MaxBackups: fileAppenderMaxBackups,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(file), file: file}
}

// Close closes the current file.
func (appender *FileAppender) Close() error {
	return appender.file.Close()
}
