package events_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to relay events to registered receivers.")
	{
		evts := events.New()

		ch1 := evts.Acquire("one")
		ch2 := evts.Acquire("two")

		evts.Send("viewer: block")

		for i, ch := range []<-chan string{ch1, ch2} {
			if msg := <-ch; msg != "viewer: block" {
				t.Fatalf("\t%s\tShould deliver the event to receiver %d, got %q.", failed, i, msg)
			}
		}
		t.Logf("\t%s\tShould deliver the event to every receiver.", success)

		if err := evts.Release("one"); err != nil {
			t.Fatalf("\t%s\tShould be able to release a receiver: %v", failed, err)
		}
		if _, open := <-ch1; open {
			t.Fatalf("\t%s\tShould close a released channel.", failed)
		}
		t.Logf("\t%s\tShould close a released channel.", success)

		if err := evts.Release("one"); err == nil {
			t.Fatalf("\t%s\tShould not release an unknown receiver.", failed)
		}
		t.Logf("\t%s\tShould not release an unknown receiver.", success)

		for i := 0; i < 200; i++ {
			evts.Send("flood")
		}
		t.Logf("\t%s\tShould not block on a slow receiver.", success)

		evts.Shutdown()
		if evts.Count() != 0 {
			t.Fatalf("\t%s\tShould remove every receiver on shutdown.", failed)
		}
		t.Logf("\t%s\tShould remove every receiver on shutdown.", success)
	}
}
