// Package ssh forwards a local port to the analysis backend through an
// SSH bastion, for backends that are not reachable directly.
//
// Design decisions:
//   - Uses golang.org/x/crypto/ssh for the client and knownhosts for
//     host key verification when a known_hosts file is configured.
//   - Listens on a random loopback port; callers rewrite the backend URL
//     to it (config.BackendConfig.WithLocalEndpoint).
//   - Each accepted connection is piped through its own SSH channel.
//   - Only key-based authentication is supported (with optional passphrase).
package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/DachengChen/querybot/applog"
	"github.com/DachengChen/querybot/config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Addr is the local end of a running tunnel.
type Addr struct {
	Host string
	Port int
}

func (a Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Tunnel forwards 127.0.0.1:<random> to a remote address via a bastion.
type Tunnel struct {
	clientConfig *ssh.ClientConfig
	bastion      string // "host:22"
	remote       string // as seen from the bastion

	client   *ssh.Client
	listener net.Listener
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewTunnel prepares a tunnel to remote ("host:port"); it does not
// connect yet.
func NewTunnel(cfg config.SSHConfig, remote string) (*Tunnel, error) {
	if cfg.Host == "" {
		return nil, errors.New("ssh tunnel: no bastion host configured")
	}
	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}
	hostKeys, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	return &Tunnel{
		clientConfig: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKeys,
		},
		bastion: net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		remote:  remote,
		done:    make(chan struct{}),
	}, nil
}

// Start connects to the bastion and begins forwarding. The returned
// address is where the backend can now be reached.
func (t *Tunnel) Start(ctx context.Context) (Addr, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.bastion)
	if err != nil {
		return Addr{}, fmt.Errorf("ssh dial %s: %w", t.bastion, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, t.bastion, t.clientConfig)
	if err != nil {
		conn.Close()
		return Addr{}, fmt.Errorf("ssh handshake %s: %w", t.bastion, err)
	}
	t.client = ssh.NewClient(c, chans, reqs)

	t.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.client.Close()
		return Addr{}, fmt.Errorf("local listen: %w", err)
	}
	local := Addr{Host: "127.0.0.1", Port: t.listener.Addr().(*net.TCPAddr).Port}
	applog.Info("ssh tunnel %s -> %s via %s", local, t.remote, t.bastion)

	t.wg.Add(1)
	go t.acceptLoop()
	return local, nil
}

// Stop closes the listener, waits for open connections and disconnects.
func (t *Tunnel) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		if t.listener != nil {
			t.listener.Close()
		}
		t.wg.Wait()
		if t.client != nil {
			t.client.Close()
		}
	})
}

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			applog.Warn("ssh tunnel accept: %v", err)
			continue
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		applog.Warn("ssh tunnel dial %s: %v", t.remote, err)
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(local, remote)
		done <- struct{}{}
	}()
	select {
	case <-done:
	case <-t.done:
	}
}

func authMethods(cfg config.SSHConfig) ([]ssh.AuthMethod, error) {
	if cfg.KeyPath == "" {
		return nil, errors.New("no SSH authentication methods configured (set backend.ssh.key_path)")
	}
	keyBytes, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", cfg.KeyPath, err)
	}

	var signer ssh.Signer
	if cfg.KeyPassphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(cfg.KeyPassphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

// hostKeyCallback verifies against known_hosts when one is configured.
func hostKeyCallback(cfg config.SSHConfig) (ssh.HostKeyCallback, error) {
	if cfg.KnownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(cfg.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("known hosts %s: %w", cfg.KnownHostsPath, err)
	}
	return cb, nil
}
