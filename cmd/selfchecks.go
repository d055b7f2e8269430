package main

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethereum-optimism/infra/op-harness/registry"
	"github.com/ethereum-optimism/infra/op-harness/runnable"
	"github.com/ethereum-optimism/infra/op-harness/service"
)

// asyncResult is a promise-style handle for work completing on another
// goroutine. It settles exactly once.
type asyncResult struct {
	done chan struct{}
	err  error
}

func newAsyncResult(work func() error) *asyncResult {
	r := &asyncResult{done: make(chan struct{})}
	go func() {
		r.err = work()
		close(r.done)
	}()
	return r
}

func (r *asyncResult) Then(onFulfilled func(value any), onRejected func(reason any)) {
	go func() {
		<-r.done
		if r.err != nil {
			onRejected(r.err)
			return
		}
		onFulfilled(nil)
	}()
}

// registerSelfChecks registers the built-in runnables that verify the
// service's own endpoints are serving. Each uses a different invocation
// style so a default deployment exercises all three paths.
func registerSelfChecks(reg *registry.Registry) error {
	client := &http.Client{Timeout: time.Second}

	if err := reg.RegisterInSuite("healthz endpoint responds", "self", func() error {
		return checkEndpoint(client, net.JoinHostPort(service.HealthzHost, service.HealthzPort), "/healthz")
	}); err != nil {
		return err
	}

	if err := reg.RegisterInSuite("metrics endpoint responds", "self", func(done runnable.Done) {
		go func() {
			if err := checkEndpoint(client, net.JoinHostPort(service.MetricsHost, service.MetricsPort), "/metrics"); err != nil {
				done(err)
				return
			}
			done(nil)
		}()
	}); err != nil {
		return err
	}

	if err := reg.RegisterInSuite("prometheus registry gathers", "self", func() any {
		return newAsyncResult(func() error {
			mfs, err := prometheus.DefaultGatherer.Gather()
			if err != nil {
				return err
			}
			if len(mfs) == 0 {
				return fmt.Errorf("no metric families registered")
			}
			return nil
		})
	}); err != nil {
		return err
	}

	return nil
}

func checkEndpoint(client *http.Client, addr, path string) error {
	resp, err := client.Get(fmt.Sprintf("http://%s%s", addr, path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return nil
}
