package scan

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/mostlygeek/arp"
)

const emptyMAC = "00:00:00:00:00:00"

type hostJob struct {
	ip   net.IP
	done chan hostState
}

type hostState struct {
	ip      net.IP
	up      bool
	latency time.Duration
}

// TableProber works without raw socket access: it nudges the kernel into
// resolving every address of the target with a throwaway TCP dial and then
// reads the neighbour table.
type TableProber struct {
	timeout      time.Duration
	maxRoutines  int
	resolveNames bool
	table        func() map[string]string
	dial         func(ctx context.Context, address string) (net.Conn, error)
}

func NewTableProber(timeout time.Duration, parallelism int, resolveNames bool) *TableProber {
	if parallelism < 1 {
		parallelism = 1
	}
	dialer := &net.Dialer{Timeout: timeout}
	return &TableProber{
		timeout:      timeout,
		maxRoutines:  parallelism,
		resolveNames: resolveNames,
		table: func() map[string]string {
			return arp.Table()
		},
		dial: func(ctx context.Context, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", address)
		},
	}
}

func (s *TableProber) Probe(ctx context.Context, target string) ([]Device, error) {
	devices, err := s.sweep(ctx, target)
	if err != nil {
		return nil, &ProbeError{Target: target, Err: err}
	}
	return devices, nil
}

func (s *TableProber) sweep(ctx context.Context, target string) ([]Device, error) {

	ti := NewTargetIterator(target)

	jobChan := make(chan hostJob, s.maxRoutines)
	wg := &sync.WaitGroup{}

	for i := 0; i < s.maxRoutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				job.done <- s.knock(ctx, job.ip)
			}
		}()
	}

	states := []chan hostState{}
	var iterErr error

	for {
		ip, err := ti.Next()
		if err != nil {
			if err != io.EOF {
				iterErr = err
			}
			break
		}

		if ctx.Err() != nil {
			break
		}

		done := make(chan hostState, 1)
		states = append(states, done)
		jobChan <- hostJob{ip: ip, done: done}
	}

	close(jobChan)
	wg.Wait()

	if iterErr != nil {
		return nil, iterErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := s.table()

	devices := []Device{}
	for _, done := range states {
		state := <-done

		macStr, ok := table[state.ip.String()]
		if !ok || macStr == emptyMAC {
			continue
		}

		mac, err := net.ParseMAC(macStr)
		if err != nil {
			continue
		}

		device := NewDevice(state.ip, mac)
		if state.up {
			device.Latency = state.latency
		}
		if s.resolveNames {
			device.lookupName()
		}
		devices = append(devices, device)
	}
	sortDevices(devices)

	return devices, nil
}

func (s *TableProber) knock(ctx context.Context, ip net.IP) hostState {

	state := hostState{ip: ip}

	start := time.Now()
	conn, err := s.dial(ctx, fmt.Sprintf("%s:1", ip.String()))
	if err != nil {
		// a refusal still proves the host answered
		if !strings.Contains(err.Error(), "timeout") && ctx.Err() == nil {
			state.up = true
			state.latency = time.Since(start)
		}
	} else {
		state.up = true
		state.latency = time.Since(start)
		conn.Close()
	}

	return state
}
