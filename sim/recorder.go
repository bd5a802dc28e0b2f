package sim

// Recorder is the interface output collaborators implement in order to get
// notified with sampled element state after each completed step. The core
// makes no assumption about storage format or sampling frequency beyond
// calling the hooks below.
type Recorder interface {
	// OnSimulationReset informs the recorder of a reset, passing the names
	// of all subjects it observes through this binding.
	OnSimulationReset(subjects []string)

	// OnObservedValue delivers one subject's attribute value at simulation
	// time t. Called once per bound subject after each update phase.
	OnObservedValue(subject string, t, value float64)

	// OnSimulationStep is called once per recorder after all observed
	// values for a step have been delivered.
	OnSimulationStep(t float64)
}

// recorderBinding ties one recorder to a published attribute of a set of
// elements.
type recorderBinding struct {
	recorder  Recorder
	attribute string
	subjects  []Element
}

func (b *recorderBinding) reset() {
	names := make([]string, len(b.subjects))
	for i, subject := range b.subjects {
		names[i] = subject.Name()
	}
	b.recorder.OnSimulationReset(names)
}

func (b *recorderBinding) sample(t float64) {
	for _, subject := range b.subjects {
		if value, ok := subject.Attributes()[b.attribute]; ok {
			b.recorder.OnObservedValue(subject.Name(), t, value)
		}
	}
}

// Record binds a recorder to a named public attribute of the given
// elements. The recorder is notified after every update phase with the
// just-published values. Binding zero subjects is a configuration error.
func (s *Simulator) Record(rec Recorder, attribute string, subjects ...Element) error {
	if rec == nil {
		return configErrorf("cannot record with nil recorder")
	}
	if len(subjects) == 0 {
		return configErrorf("recorder for %q bound to no subjects", attribute)
	}
	for _, subject := range subjects {
		if subject == nil {
			return configErrorf("recorder for %q bound to nil subject", attribute)
		}
	}
	s.bindings = append(s.bindings, &recorderBinding{
		recorder:  rec,
		attribute: attribute,
		subjects:  subjects,
	})
	known := false
	for _, r := range s.recorders {
		if r == rec {
			known = true
			break
		}
	}
	if !known {
		s.recorders = append(s.recorders, rec)
	}
	return nil
}

func (s *Simulator) sampleRecorders() {
	for _, b := range s.bindings {
		b.sample(s.time)
	}
	for _, r := range s.recorders {
		r.OnSimulationStep(s.time)
	}
}
