package filewatcher

import (
	"github.com/lightforgemedia/go-arylicrpc/pkg/config"
)

// WatchConfig reloads the config file at path whenever it changes and hands
// the result to apply. A file that fails to load is logged and skipped; the
// previous configuration stays in effect.
func WatchConfig(path string, apply func(*config.Config), opts ...Option) (*FileWatcher, error) {
	fw, err := New(append(opts, WithFiles(path))...)
	if err != nil {
		return nil, err
	}
	fw.AddCallback(func(file string) {
		cfg, err := config.Load(file)
		if err != nil {
			fw.logger.Warn("Config reload failed", "file", file, "error", err)
			return
		}
		fw.logger.Info("Config reloaded", "file", file, "active_endpoint", cfg.ActiveEndpoint)
		apply(cfg)
	})
	if err := fw.Start(); err != nil {
		fw.Stop()
		return nil, err
	}
	return fw, nil
}
