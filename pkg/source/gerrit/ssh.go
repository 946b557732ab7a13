package gerrit

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/oneconcern/trawler/pkg/source/status"
)

// Runner executes one remote gerrit command and returns its raw output.
// Injected in tests; backed by ssh in production.
type Runner interface {
	Run(ctx context.Context, command string) ([]byte, error)
	Close() error
}

type sshRunner struct {
	client *ssh.Client
}

func newSSHRunner(host string, port int, username, keyFile string) (Runner, error) {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, status.ErrSetup.WrapMessage("reading ssh key %q: %v", keyFile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, status.ErrSetup.WrapMessage("parsing ssh key %q: %v", keyFile, err)
	}
	cfg := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
		// review hosts rotate keys between runs; pinning is left to the
		// operator's ssh setup
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec
	}
	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", host, port), cfg)
	if err != nil {
		return nil, status.ErrSetup.WrapMessage("dialing %s:%d: %v", host, port, err)
	}
	return &sshRunner{client: client}, nil
}

func (r *sshRunner) Run(ctx context.Context, command string) ([]byte, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return nil, status.ErrLog.Wrap(err)
	}
	defer func() { _ = session.Close() }()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, rerr := session.Output(command)
		done <- result{out: out, err: rerr}
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, status.ErrLog.Wrap(res.err)
		}
		return res.out, nil
	}
}

func (r *sshRunner) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
