package engine

// Telemetry holds one handler slot per event kind. Handlers run synchronously on the
// goroutine that drives the engine and must not block. Registering a handler replaces
// the previous one; unset slots are skipped.
type Telemetry struct {
	message  func(text string)
	heater   func(on bool)
	readings func(readings []Reading, elapsed float64)
	mode     func(last, current Mode)
	stage    func(name string, target float64)
}

// NewTelemetry returns an emitter with no handlers registered.
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

func (t *Telemetry) OnMessage(fn func(text string))                         { t.message = fn }
func (t *Telemetry) OnHeater(fn func(on bool))                              { t.heater = fn }
func (t *Telemetry) OnReadings(fn func(readings []Reading, elapsed float64)) { t.readings = fn }
func (t *Telemetry) OnMode(fn func(last, current Mode))                     { t.mode = fn }
func (t *Telemetry) OnStage(fn func(name string, target float64))           { t.stage = fn }

// Clear drops every registered handler.
func (t *Telemetry) Clear() {
	*t = Telemetry{}
}

func (t *Telemetry) emitMessage(text string) {
	if t.message != nil {
		t.message(text)
	}
}

func (t *Telemetry) emitHeater(on bool) {
	if t.heater != nil {
		t.heater(on)
	}
}

func (t *Telemetry) emitReadings(readings []Reading, elapsed float64) {
	if t.readings != nil {
		t.readings(readings, elapsed)
	}
}

func (t *Telemetry) emitMode(last, current Mode) {
	if t.mode != nil {
		t.mode(last, current)
	}
}

func (t *Telemetry) emitStage(name string, target float64) {
	if t.stage != nil {
		t.stage(name, target)
	}
}
