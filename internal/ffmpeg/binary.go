// Package ffmpeg locates the FFmpeg binary, probes encoder capabilities,
// builds render command lines, and supervises running processes.
package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/ChadR23/sentry-six/internal/models"
)

// FindBinary locates the ffmpeg executable. Search order:
//  1. Explicit configured path
//  2. A bundled binary next to the running executable
//  3. Well-known OS install locations
//  4. ffmpeg on PATH
//
// On non-Windows platforms a found binary that lost its executable bit
// (common after zip extraction) is chmod +x'd before use.
func FindBinary(configured string) (string, error) {
	if configured != "" {
		if path, ok := usable(configured); ok {
			return path, nil
		}
		return "", fmt.Errorf("%w: configured path %q is not an executable file", models.ErrFFmpegMissing, configured)
	}

	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), binaryName())
		if path, ok := usable(bundled); ok {
			return path, nil
		}
	}

	for _, candidate := range osLocations() {
		if path, ok := usable(candidate); ok {
			return path, nil
		}
	}

	if path, err := exec.LookPath(binaryName()); err == nil {
		return path, nil
	}

	return "", models.ErrFFmpegMissing
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// osLocations lists conventional install paths per platform.
func osLocations() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/opt/homebrew/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
		}
	case "windows":
		return []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
		}
	default:
		return []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
		}
	}
}

// usable verifies the path is a regular file and ensures it is
// executable, returning the path on success.
func usable(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		if err := os.Chmod(path, info.Mode()|0o755); err != nil {
			return "", false
		}
	}
	return path, true
}
