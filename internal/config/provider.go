package config

import "sync"

// Provider hands out the current configuration. Callers read it once per
// operation and do not hold on to it across operations.
type Provider interface {
	Config() Config
}

// Static always returns the same configuration.
type Static Config

func (s Static) Config() Config {
	return Config(s)
}

// FileProvider re-reads its file on every call, so edits made between two
// renders are picked up. A broken file keeps the last good configuration.
type FileProvider struct {
	Path     string
	EnvFiles []string

	mu   sync.Mutex
	last *Config
	err  error
}

func NewFileProvider(path string, envFiles ...string) *FileProvider {
	return &FileProvider{Path: path, EnvFiles: envFiles}
}

func (p *FileProvider) Config() Config {
	cfg, err := Load(p.Path, p.EnvFiles...)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	if err != nil {
		if p.last != nil {
			return *p.last
		}
		return Default()
	}
	p.last = &cfg
	return cfg
}

// Err reports the error of the most recent reload, if any.
func (p *FileProvider) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
