package scheduler

import (
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"
)

// Consul registers the service and elects the instance running the daily job.
type Consul struct {
	client *api.Client
}

// NewConsul connects to the agent at addr and checks it answers.
func NewConsul(addr string) (*Consul, error) {
	cfg := api.DefaultConfig()
	cfg.Address = addr
	cli, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := cli.Agent().Self(); err != nil {
		return nil, fmt.Errorf("consul agent %s unavailable: %w", addr, err)
	}
	return &Consul{client: cli}, nil
}

// Registration describes this instance in the catalog.
type Registration struct {
	ID       string
	Name     string
	Address  string
	Port     int
	Tags     []string
	Interval time.Duration // health check period
}

func (r Registration) service() *api.AgentServiceRegistration {
	interval := r.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	host := r.Address
	if host == "" {
		host = "127.0.0.1"
	}
	return &api.AgentServiceRegistration{
		ID:      r.ID,
		Name:    r.Name,
		Address: r.Address,
		Port:    r.Port,
		Tags:    r.Tags,
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/healthz", host, r.Port),
			Interval:                       interval.String(),
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

// Register adds the service with an HTTP check on /healthz.
func (c *Consul) Register(r Registration) error {
	return c.client.Agent().ServiceRegister(r.service())
}

func (c *Consul) Deregister(id string) error {
	return c.client.Agent().ServiceDeregister(id)
}

// TryLock tries once to take the lock at key. ok is false when another
// instance holds it.
func (c *Consul) TryLock(key string) (release func(), ok bool, err error) {
	lock, err := c.client.LockOpts(&api.LockOptions{
		Key:          key,
		LockTryOnce:  true,
		LockWaitTime: 5 * time.Second,
	})
	if err != nil {
		return nil, false, err
	}
	leaderCh, err := lock.Lock(make(chan struct{}))
	if err != nil {
		return nil, false, err
	}
	if leaderCh == nil {
		return nil, false, nil
	}
	return func() { _ = lock.Unlock() }, true, nil
}

// Done reports whether the marker key exists.
func (c *Consul) Done(key string) (bool, error) {
	pair, _, err := c.client.KV().Get(key, nil)
	if err != nil {
		return false, err
	}
	return pair != nil, nil
}

// MarkDone writes the marker key with the completion time.
func (c *Consul) MarkDone(key string) error {
	_, err := c.client.KV().Put(&api.KVPair{
		Key:   key,
		Value: []byte(time.Now().UTC().Format(time.RFC3339)),
	}, nil)
	return err
}
