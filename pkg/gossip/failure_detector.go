package gossip

// FailureDetector tracks per-peer silence and decides when a peer looks gone.
// Time is measured in protocol ticks, not wall-clock, so detection is
// deterministic under simulation.
type FailureDetector interface {
	Observe(id NodeID) // message received from id this tick
	Tick()             // one protocol tick elapsed
	Silent(id NodeID) bool
	Ticks(id NodeID) int
}

// SilenceDetector declares a peer silent once it has gone more than
// Threshold ticks without a message.
type SilenceDetector struct {
	Threshold int

	silence map[NodeID]int
	touched map[NodeID]struct{}
}

func NewSilenceDetector(threshold int) *SilenceDetector {
	return &SilenceDetector{
		Threshold: threshold,
		silence:   make(map[NodeID]int),
		touched:   make(map[NodeID]struct{}),
	}
}

func (d *SilenceDetector) Observe(id NodeID) {
	d.silence[id] = 0
	d.touched[id] = struct{}{}
}

// Track starts counting for id without marking it heard this tick.
func (d *SilenceDetector) Track(id NodeID) {
	if _, ok := d.silence[id]; !ok {
		d.silence[id] = 0
	}
}

// Tick ages every peer not observed since the previous Tick.
func (d *SilenceDetector) Tick() {
	for id := range d.silence {
		if _, ok := d.touched[id]; ok {
			continue
		}
		d.silence[id]++
	}
	clear(d.touched)
}

func (d *SilenceDetector) Silent(id NodeID) bool {
	n, ok := d.silence[id]
	return ok && n > d.Threshold
}

func (d *SilenceDetector) Ticks(id NodeID) int {
	return d.silence[id]
}
