package mapper

import "errors"

// Notifier is an observable event source. Slots are called synchronously
// by whoever fires the notification, and any errors they return are
// delivered back to that caller.
type Notifier interface {
	// Subscribe connects slot and returns a function that disconnects it.
	// Calling the returned function more than once is harmless.
	Subscribe(slot func() error) (unsubscribe func())
}

// NotifierSource can be implemented by models (and displays) that resolve
// notifiers by name themselves, instead of through exported fields.
type NotifierSource interface {
	Notifier(name string) (Notifier, bool)
}

// Signal is a simple Notifier for model types. The zero value is ready to
// use. Signal is not safe for concurrent use; like the rest of the mapper
// it belongs to the UI thread.
type Signal struct {
	slots  []signalSlot
	nextID int
}

type signalSlot struct {
	id int
	fn func() error
}

func (s *Signal) Subscribe(slot func() error) func() {
	s.nextID++
	id := s.nextID
	s.slots = append(s.slots, signalSlot{id, slot})
	return func() {
		for i, sl := range s.slots {
			if sl.id == id {
				s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every connected slot in connection order. All slots are called
// even if one fails; their errors are joined.
func (s *Signal) Emit() error {
	if len(s.slots) == 0 {
		return nil
	}
	// Slots may disconnect during emission
	slots := append([]signalSlot(nil), s.slots...)
	var errs []error
	for _, sl := range slots {
		if err := sl.fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Connected returns the number of connected slots.
func (s *Signal) Connected() int {
	return len(s.slots)
}
