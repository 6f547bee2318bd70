//go:build !nocoupling

package coupling

// Enabled reports whether this build carries the exchange engine
const Enabled = true

func capability() error { return nil }

func newChannel(cfg channelConfig) Channel {
	return newActiveChannel(cfg)
}
