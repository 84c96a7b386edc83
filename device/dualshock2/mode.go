package dualshock2

// toggleMode swaps between digital and analog. Any non-digital mode,
// pressure included, goes back to digital.
func toggleMode(r *Registers) {
	if r.ControlMode == ModeDigital {
		r.ControlMode = ModeAnalog
		return
	}
	r.ControlMode = ModeDigital
}

// requestToggle handles a toggle asked for by the host link. Inside Config
// the toggle is deferred until the console leaves Config.
func requestToggle(r *Registers) {
	if r.ControlMode == ModeConfig {
		r.ModeRequest = r.ConfigMode
		return
	}
	toggleMode(r)
}

func enterConfig(r *Registers) {
	r.ConfigMode = r.ControlMode
	r.ControlMode = ModeConfig
}

// exitConfig restores the saved mode and applies a deferred toggle if it
// still matches. The request is dropped either way.
func exitConfig(r *Registers) {
	r.ControlMode = r.ConfigMode
	if r.ModeRequest != ModeNone && !r.ModeLock && r.ModeRequest == r.ControlMode {
		toggleMode(r)
	}
	r.ModeRequest = ModeNone
}
