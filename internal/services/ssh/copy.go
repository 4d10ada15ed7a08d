package ssh

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fgeck/devicectl/internal/models"
)

// Push uploads a local file to the device over scp, keeping its permission bits.
func (s *Impl) Push(ctx context.Context, dev models.Device, localPath, remotePath string) (*models.CopyResult, error) {
	result := &models.CopyResult{Source: localPath, Destination: remotePath}

	file, err := os.Open(localPath)
	if err != nil {
		result.Error = fmt.Errorf("failed to open local file: %w", err)
		return result, nil
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		result.Error = fmt.Errorf("failed to stat local file: %w", err)
		return result, nil
	}

	conn, err := s.connect(ctx, dev)
	if err != nil {
		result.Error = err
		return result, nil
	}
	defer func() { _ = conn.Close() }()

	permission := fmt.Sprintf("%#o", info.Mode().Perm())
	if err := conn.Upload(ctx, file, remotePath, permission); err != nil {
		result.Error = fmt.Errorf("%w: upload %s: %w", models.ErrChannel, remotePath, err)
		return result, nil
	}
	result.Bytes = info.Size()

	s.logger.Info().
		Str("device", dev.Name).
		Str("source", localPath).
		Str("destination", remotePath).
		Int64("bytes", result.Bytes).
		Msg("file pushed")

	return result, nil
}

// Pull downloads a file from the device over scp. The download lands in a
// temporary file next to localPath, which replaces localPath only once the
// transfer succeeded; an existing file survives a failed pull.
func (s *Impl) Pull(ctx context.Context, dev models.Device, remotePath, localPath string) (*models.CopyResult, error) {
	result := &models.CopyResult{Source: remotePath, Destination: localPath}

	conn, err := s.connect(ctx, dev)
	if err != nil {
		result.Error = err
		return result, nil
	}
	defer func() { _ = conn.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*")
	if err != nil {
		result.Error = fmt.Errorf("failed to create local file: %w", err)
		return result, nil
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := conn.Download(ctx, tmp, remotePath); err != nil {
		result.Error = fmt.Errorf("%w: download %s: %w", models.ErrChannel, remotePath, err)
		return result, nil
	}

	info, err := tmp.Stat()
	if err != nil {
		result.Error = fmt.Errorf("failed to stat local file: %w", err)
		return result, nil
	}
	if err := tmp.Chmod(pullMode(localPath)); err != nil {
		result.Error = fmt.Errorf("failed to set file mode: %w", err)
		return result, nil
	}
	if err := tmp.Close(); err != nil {
		result.Error = fmt.Errorf("failed to write local file: %w", err)
		return result, nil
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		result.Error = fmt.Errorf("failed to replace local file: %w", err)
		return result, nil
	}
	committed = true
	result.Bytes = info.Size()

	s.logger.Info().
		Str("device", dev.Name).
		Str("source", remotePath).
		Str("destination", localPath).
		Int64("bytes", result.Bytes).
		Msg("file pulled")

	return result, nil
}

// pullMode keeps the mode of a file being replaced.
func pullMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}
