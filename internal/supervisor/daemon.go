package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"syscall"

	"github.com/wardenhq/warden/internal/child"
)

// pidFileHandle keeps the file descriptor open for the life of the daemon:
// the advisory lock is released the moment the fd closes, so it must
// outlive the process rather than be closed right after writing.
var pidFileHandle *os.File

// WritePIDFile writes the current process PID to path under an advisory
// exclusive flock, per §6. A held lock means another instance already owns
// this pidfile.
func WritePIDFile(path string) error {
	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("cannot open PID file: %s: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("PID file already locked: %s: %w", path, err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return fmt.Errorf("cannot truncate PID file: %s: %w", path, err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		f.Close()
		return fmt.Errorf("cannot write PID file: %s: %w", path, err)
	}

	pidFileHandle = f
	return nil
}

// RemovePIDFile releases the advisory lock, closes the handle, and removes
// the file.
func RemovePIDFile(path string) {
	if path == "" {
		return
	}
	if pidFileHandle != nil {
		syscall.Flock(int(pidFileHandle.Fd()), syscall.LOCK_UN)
		pidFileHandle.Close()
		pidFileHandle = nil
	}
	_ = os.Remove(path)
}

// ValidateUnprivileged checks that the daemon is not running as root
// when it shouldn't be. Returns a descriptive error for permission issues.
func ValidateUnprivileged(logger *slog.Logger) error {
	uid := os.Getuid()
	if uid == 0 {
		logger.Warn("running as root; consider using a non-root user")
	}
	return nil
}

// ValidateSocketPermissions checks that the socket directory is writable.
func ValidateSocketPermissions(socketPath string) error {
	dir := socketPath
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' {
			dir = dir[:i]
			break
		}
	}
	if dir == "" {
		dir = "."
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("socket directory does not exist: %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("socket path parent is not a directory: %s", dir)
	}

	// Check write permission by trying to create a temp file.
	tmpPath := dir + "/.warden_perm_check"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("permission denied: cannot create socket in %s: %w", dir, err)
	}
	f.Close()
	os.Remove(tmpPath)

	return nil
}

// Daemonize performs a double-fork to become a background daemon.
// Returns true in the parent (which should exit), false in the daemon child.
func Daemonize(logger *slog.Logger) (bool, error) {
	// First fork.
	pid, errno := sysFork()
	if errno != 0 {
		return false, fmt.Errorf("first fork failed: %v", errno)
	}
	if pid > 0 {
		// Parent process -- exit.
		return true, nil
	}

	// Create new session.
	if _, err := syscall.Setsid(); err != nil {
		return false, fmt.Errorf("setsid failed: %w", err)
	}

	// Second fork.
	pid, errno = sysFork()
	if errno != 0 {
		return false, fmt.Errorf("second fork failed: %v", errno)
	}
	if pid > 0 {
		// First child -- exit.
		os.Exit(0)
	}

	// Redirect stdio to /dev/null.
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return false, fmt.Errorf("cannot open /dev/null: %w", err)
	}
	_ = sysDup2(int(devNull.Fd()), int(os.Stdin.Fd()))
	_ = sysDup2(int(devNull.Fd()), int(os.Stdout.Fd()))
	_ = sysDup2(int(devNull.Fd()), int(os.Stderr.Fd()))
	devNull.Close()

	logger.Info("daemonized", "pid", os.Getpid())
	return false, nil
}

// DropPrivileges switches the daemon's own process to the given uid[:gid],
// reusing the same "uid[:gid]" grammar as a child's user field.
func DropPrivileges(user string, logger *slog.Logger) error {
	if user == "" {
		return nil
	}

	cred, err := child.ParseCredential(user)
	if err != nil {
		return fmt.Errorf("cannot resolve user %q: %w", user, err)
	}

	if err := syscall.Setgid(int(cred.Gid)); err != nil {
		return fmt.Errorf("setgid(%d) failed: %w", cred.Gid, err)
	}
	if err := syscall.Setuid(int(cred.Uid)); err != nil {
		return fmt.Errorf("setuid(%d) failed: %w", cred.Uid, err)
	}

	logger.Info("dropped privileges", "uid", cred.Uid, "gid", cred.Gid)
	return nil
}
