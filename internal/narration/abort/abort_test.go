package abort

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagIsTerminal(t *testing.T) {
	f := New()
	assert.False(t, f.Aborted())

	f.Abort()
	assert.True(t, f.Aborted())
	f.Abort()
	assert.True(t, f.Aborted())
}

func TestNilFlagNeverAborts(t *testing.T) {
	var f *Flag
	f.Abort()
	assert.False(t, f.Aborted())

	var c Checker = Func(nil)
	assert.False(t, c.Aborted())
}

func TestFlagsAreIndependentPerJob(t *testing.T) {
	first, second := New(), New()
	first.Abort()
	assert.True(t, first.Aborted())
	assert.False(t, second.Aborted())
}

func TestFlagSetFromAnotherGoroutine(t *testing.T) {
	f := New()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.Abort()
	}()
	wg.Wait()
	assert.True(t, f.Aborted())
}

func TestCheck(t *testing.T) {
	assert.False(t, Check(nil))

	var nilFlag *Flag
	assert.False(t, Check(nilFlag))

	f := New()
	assert.False(t, Check(f))
	f.Abort()
	assert.True(t, Check(f))

	assert.True(t, Check(Func(func() bool { return true })))
}
