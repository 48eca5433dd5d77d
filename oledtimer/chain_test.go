package main

import (
	"sync"
	"testing"
	"time"

	"github.com/itohio/gotimer/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestTee(t *testing.T) {
	in := make(chan int)
	a, b := tee(in, 0)

	var wg sync.WaitGroup
	var gotA, gotB []int
	wg.Add(2)
	go func() {
		defer wg.Done()
		for v := range a {
			gotA = append(gotA, v)
		}
	}()
	go func() {
		defer wg.Done()
		for v := range b {
			gotB = append(gotB, v)
		}
	}()

	for i := 0; i < 5; i++ {
		in <- i
	}
	close(in)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tee outputs did not close")
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, gotA)
	assert.Equal(t, gotA, gotB)
}

func TestApplyMinutesFlag(t *testing.T) {
	cfg := config.Default()

	applyMinutesFlag(cfg, 45)
	assert.Equal(t, uint16(45), cfg.Timer.PresetMinutes)
	assert.False(t, cfg.Timer.StartFinished)

	applyMinutesFlag(cfg, 0)
	assert.True(t, cfg.Timer.StartFinished)

	applyMinutesFlag(cfg, 5000)
	assert.Equal(t, uint16(999), cfg.Timer.PresetMinutes)
}

func TestLowTransition(t *testing.T) {
	state := &appState{}

	assert.False(t, lowTransition(state, false))
	assert.True(t, lowTransition(state, true))
	assert.False(t, lowTransition(state, true), "fires once")
	assert.False(t, lowTransition(state, false))
	assert.True(t, lowTransition(state, true), "fires again after recovery")
}
