package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	ch := f.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("fired before deadline")
	default:
	}

	f.Advance(5 * time.Second)

	select {
	case fired := <-ch:
		assert.Equal(t, start.Add(5*time.Second), fired)
	default:
		t.Fatal("did not fire at deadline")
	}
}

func TestFakeTickerRepeats(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	ticker := f.NewTicker(time.Second)

	f.Advance(time.Second)
	<-ticker.C()

	f.Advance(time.Second)
	<-ticker.C()
}

func TestFakeTickerStop(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	ticker := f.NewTicker(time.Second)
	ticker.Stop()

	f.Advance(2 * time.Second)

	select {
	case <-ticker.C():
		t.Fatal("stopped ticker still fired")
	default:
	}
}
