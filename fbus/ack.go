package fbus

import "io"

// Acker sends acknowledgements for received frames.
type Acker struct {
	ep    Endpoint
	w     io.Writer
	stats *Stats
}

func NewAcker(ep Endpoint, w io.Writer, stats *Stats) *Acker {
	return &Acker{ep: ep, w: w, stats: stats}
}

// Acknowledge confirms the receipt of the frame with the given command and sequence byte.
// Only the lower three bits of seq go on the wire.
func (a *Acker) Acknowledge(cmd, seq byte) error {
	f := EncodeAck(a.ep, cmd, seq)
	n, err := a.w.Write(f)
	a.stats.addOut(n)
	if err != nil {
		return err
	}
	a.stats.add(func(c *StatsSnapshot) { c.AcksSent++ })
	return nil
}
