package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freenect2.log")
	appender := NewFileAppender(path)

	logger := NewBlankLogger("file")
	logger.AddAppender(appender)
	logger.SetLevel(INFO)
	logger.Debug("not written")
	logger.Infow("device opened", "serial", "011987650347")
	test.That(t, appender.Close(), test.ShouldBeNil)

	//nolint:gosec
	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "INFO\tfile")
	test.That(t, string(contents), test.ShouldContainSubstring, `device opened	{"serial":"011987650347"}`)
	test.That(t, string(contents), test.ShouldNotContainSubstring, "not written")
}
