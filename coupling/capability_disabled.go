//go:build nocoupling

package coupling

// Enabled reports whether this build carries the exchange engine
const Enabled = false

func capability() error { return ErrUnsupported }

func newChannel(cfg channelConfig) Channel {
	return &disabledChannel{dir: cfg.dir}
}
