//go:build rp2040

package main

import (
	"errors"
	"sensorstream/core"
	"sensorstream/protocol"
	"strconv"
	"strings"
)

var errChannelArg = errors.New("usage: reads <channel>")

// registerTargetCommands adds the board-specific host commands.
func registerTargetCommands(r *protocol.CommandRegistry, reg *core.Registry, clock *audioClock) {
	r.Register("channels", "list enabled channels", func(args []string) (string, error) {
		var b strings.Builder
		for i, ch := range reg.Enabled() {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(ch.ID().String())
			b.WriteByte('=')
			b.WriteString(strconv.Itoa(ch.Layout().Size()))
		}
		return b.String(), nil
	})

	r.Register("reads", "polled reads and failures for a channel id", func(args []string) (string, error) {
		if len(args) != 1 {
			return "", errChannelArg
		}
		id, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return "", errChannelArg
		}
		ch, ok := reg.Lookup(core.ChannelID(id))
		if !ok {
			return "", errChannelArg
		}
		p, ok := ch.(*core.PolledChannel)
		if !ok {
			return "", errors.New(ch.ID().String() + " is not polled")
		}
		reads, failed := p.ReadStats()
		out := "reads=" + strconv.FormatUint(uint64(reads), 10) + " failed=" + strconv.FormatUint(uint64(failed), 10)
		if err := p.LastReadErr(); err != nil {
			out += " last=" + err.Error()
		}
		return out, nil
	})

	r.Register("clock", "pdm clock divider", func(args []string) (string, error) {
		whole, frac, ok := clock.Divider()
		if !ok {
			return "", errPDMClock
		}
		return "root=" + strconv.FormatUint(uint64(clock.rootHz), 10) +
			" div=" + strconv.Itoa(int(whole)) + "+" + strconv.Itoa(int(frac)) + "/256", nil
	})

	r.Register("uptime", "bank ticks since boot", func(args []string) (string, error) {
		return strconv.FormatUint(uint64(timerBank.Now()), 10), nil
	})

	r.Register("reset", "reboot via watchdog", func(args []string) (string, error) {
		core.SystemReset()
		return "", nil
	})
}
