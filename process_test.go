package cimba

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSimulation() *Simulation {
	return NewOptions(WithStartTime(0))
}

func TestHoldAdvancesClockAndReturnsSuccess(t *testing.T) {
	sim := newTestSimulation()
	var got Signal
	var finishedAt float64

	p := sim.NewProcess("holder", 0)
	p.Initialize(func(self *Process, arg any) any {
		got = self.Hold(5)
		finishedAt = sim.Time()
		return nil
	})
	p.Start(nil)
	sim.Run()

	require.Equal(t, SUCCESS, got)
	require.Equal(t, float64(5), finishedAt)
}

func TestWaitForProcessReturnsSuccessWhenTargetFinishes(t *testing.T) {
	sim := newTestSimulation()
	var waiterResumedAt float64
	var waiterSig Signal

	p1 := sim.NewProcess("p1", 0)
	p1.Initialize(func(self *Process, arg any) any {
		self.Hold(5)
		return nil
	})

	p2 := sim.NewProcess("p2", 0)
	p2.Initialize(func(self *Process, arg any) any {
		waiterSig = self.WaitForProcess(p1)
		waiterResumedAt = sim.Time()
		return nil
	})

	p1.Start(nil)
	p2.Start(nil)
	sim.Run()

	require.Equal(t, SUCCESS, waiterSig)
	require.Equal(t, float64(5), waiterResumedAt)
}

func TestWaitForProcessReturnsImmediatelyIfAlreadyFinished(t *testing.T) {
	sim := newTestSimulation()
	p1 := sim.NewProcess("p1", 0)
	p1.Initialize(func(self *Process, arg any) any { return nil })
	p1.Start(nil)
	sim.Run()
	require.True(t, p1.Finished())

	var sig Signal
	p2 := sim.NewProcess("p2", 0)
	p2.Initialize(func(self *Process, arg any) any {
		sig = self.WaitForProcess(p1)
		return nil
	})
	p2.Start(nil)
	sim.Run()

	require.Equal(t, SUCCESS, sig)
}

func TestWaitForEventSuccessAndCancellation(t *testing.T) {
	sim := newTestSimulation()
	var sigSuccess, sigCancelled Signal

	h1 := sim.Events().Schedule(func(any, any) {}, nil, nil, 5, 0)
	waiter1 := sim.NewProcess("waiter1", 0)
	waiter1.Initialize(func(self *Process, arg any) any {
		sigSuccess = self.WaitForEvent(h1)
		return nil
	})
	waiter1.Start(nil)

	h2 := sim.Events().Schedule(func(any, any) {}, nil, nil, 5, 0)
	waiter2 := sim.NewProcess("waiter2", 0)
	waiter2.Initialize(func(self *Process, arg any) any {
		sigCancelled = self.WaitForEvent(h2)
		return nil
	})
	waiter2.Start(nil)
	sim.Events().Schedule(func(any, any) { sim.Events().Cancel(h2) }, nil, nil, 1, 0)

	sim.Run()

	require.Equal(t, SUCCESS, sigSuccess)
	require.Equal(t, CANCELLED, sigCancelled)
}

func TestInterruptDeliveredExactlyOnceDuringHold(t *testing.T) {
	sim := newTestSimulation()
	var sig Signal
	var resumedAt float64

	p := sim.NewProcess("holder", 0)
	p.Initialize(func(self *Process, arg any) any {
		sig = self.Hold(100)
		resumedAt = sim.Time()
		return nil
	})
	p.Start(nil)

	sim.Events().Schedule(func(any, any) {
		p.Interrupt(INTERRUPTED, 0)
	}, nil, nil, 10, 0)

	sim.Run()

	require.Equal(t, INTERRUPTED, sig)
	require.Equal(t, float64(10), resumedAt)
}

func TestStopDuringHoldFinishesAtCurrentClockWithNoResidualEvents(t *testing.T) {
	sim := newTestSimulation()
	p := sim.NewProcess("p", 0)
	p.Initialize(func(self *Process, arg any) any {
		self.Hold(100)
		t.Fatal("unreachable: stop must prevent further user code from running")
		return nil
	})
	p.Start(nil)

	sim.Events().Schedule(func(any, any) {
		p.Stop("killed")
	}, nil, nil, 10, 0)

	sim.Run()

	require.True(t, p.Finished())
	require.Equal(t, "killed", p.ExitValue())
	require.Equal(t, float64(10), sim.Time())
}

func TestStopResumesProcessWaiters(t *testing.T) {
	sim := newTestSimulation()
	var sig Signal

	target := sim.NewProcess("target", 0)
	target.Initialize(func(self *Process, arg any) any {
		self.Hold(100)
		return nil
	})

	waiter := sim.NewProcess("waiter", 0)
	waiter.Initialize(func(self *Process, arg any) any {
		sig = self.WaitForProcess(target)
		return nil
	})

	target.Start(nil)
	waiter.Start(nil)

	sim.Events().Schedule(func(any, any) { target.Stop(nil) }, nil, nil, 3, 0)
	sim.Run()

	require.Equal(t, STOPPED, sig)
}

func TestSetPriorityRepositionsClockWait(t *testing.T) {
	sim := newTestSimulation()
	var order []string

	low := sim.NewProcess("low-then-boosted", 0)
	low.Initialize(func(self *Process, arg any) any {
		self.Hold(10)
		order = append(order, self.Name())
		return nil
	})

	high := sim.NewProcess("high", 5)
	high.Initialize(func(self *Process, arg any) any {
		self.Hold(10)
		order = append(order, self.Name())
		return nil
	})

	low.Start(nil)
	high.Start(nil)

	sim.Events().Schedule(func(any, any) { low.SetPriority(100) }, nil, nil, 1, 0)
	sim.Run()

	require.Equal(t, []string{"low-then-boosted", "high"}, order)
}
