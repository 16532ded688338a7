// Package vpn provides OpenVPN session management functionality.
// This file contains the OpenVPN process supervisor.
package vpn

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/bastiaanwilliams/OCL/common"
)

const (
	// promptQuiescence is how long partial output may sit without a
	// newline before it is delivered as a line. Interactive prompts
	// never end in a newline; they are followed by silence.
	promptQuiescence = 200 * time.Millisecond
	// lineQueueSize bounds buffered output lines.
	lineQueueSize = 256

	readBufferSize = 4096
)

// Process supervises a spawned OpenVPN process attached to a pty.
// The pty merges stdout and stderr into a single stream and keeps the
// process prompting interactively, which a pipe would not.
//
// The owner must consume lines (via ReadLine or Lines) until the
// stream ends; output delivery blocks once the queue fills.
type Process struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	tty      *os.File
	lines    chan string
	waitDone chan struct{}
	waitErr  error
	closeTTY sync.Once
}

// StartProcess spawns "executable --config configPath" on a pty and
// begins collecting its output.
func StartProcess(executable, configPath string) (*Process, error) {
	cmd := exec.Command(executable, "--config", configPath)

	tty, err := pty.Start(cmd)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist), errors.Is(err, exec.ErrNotFound):
			return nil, common.WrapError(common.ErrExecutableNotFound, executable)
		case errors.Is(err, os.ErrPermission):
			return nil, common.WrapError(err, "cannot execute "+executable)
		default:
			return nil, common.WrapError(err, "failed to start OpenVPN")
		}
	}

	p := &Process{
		cmd:      cmd,
		tty:      tty,
		lines:    make(chan string, lineQueueSize),
		waitDone: make(chan struct{}),
	}

	go p.monitorExit()
	go p.collectOutput()

	common.LogInfo("OpenVPN started (pid %d)", cmd.Process.Pid)
	return p, nil
}

// monitorExit is the sole caller of cmd.Wait.
func (p *Process) monitorExit() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.waitErr = err
	p.mu.Unlock()

	close(p.waitDone)
}

// collectOutput turns the raw pty stream into lines on p.lines.
// Pending output with no newline is delivered as a line once the
// stream stays quiet for promptQuiescence, so credential prompts reach
// the reader. The channel is closed when the stream ends.
func (p *Process) collectOutput() {
	defer close(p.lines)
	defer p.closeTTY.Do(func() { p.tty.Close() })

	chunks := make(chan []byte, 4)
	go func() {
		defer close(chunks)
		buf := make([]byte, readBufferSize)
		for {
			n, err := p.tty.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				chunks <- chunk
			}
			if err != nil {
				// The pty read fails with EIO once the child exits.
				return
			}
		}
	}()

	var pending []byte
	for {
		var quiet <-chan time.Time
		if len(pending) > 0 {
			quiet = time.After(promptQuiescence)
		}

		select {
		case chunk, ok := <-chunks:
			if !ok {
				if len(pending) > 0 {
					p.emit(string(pending))
				}
				return
			}
			pending = append(pending, chunk...)
			pending = p.emitCompleteLines(pending)
		case <-quiet:
			p.emit(string(pending))
			pending = pending[:0]
		}
	}
}

// emitCompleteLines emits every newline-terminated line in buf and
// returns the unterminated remainder.
func (p *Process) emitCompleteLines(buf []byte) []byte {
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			return buf
		}
		p.emit(string(bytes.TrimRight(buf[:i], "\r")))
		buf = buf[i+1:]
	}
}

func (p *Process) emit(line string) {
	p.lines <- line
}

// ReadLine returns the next output line. It fails with
// common.ErrTimeout when no line arrives in time, common.ErrStreamEnded
// when the output is exhausted, or the context error when ctx is done.
func (p *Process) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", common.ErrStreamEnded
		}
		return line, nil
	case <-timer.C:
		return "", common.ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Lines exposes the output stream, closed when the stream ends.
func (p *Process) Lines() <-chan string {
	return p.lines
}

// WriteLine sends one line of input to the process.
func (p *Process) WriteLine(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.IsAlive() {
		return common.ErrProcessNotRunning
	}
	if _, err := p.tty.Write([]byte(text + "\n")); err != nil {
		return common.WrapError(common.ErrProcessNotRunning, err.Error())
	}
	return nil
}

// IsAlive reports whether the process is still running.
func (p *Process) IsAlive() bool {
	select {
	case <-p.waitDone:
		return false
	default:
		return true
	}
}

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// ExitErr returns the error cmd.Wait produced, nil while the process
// is still running or when it exited cleanly.
func (p *Process) ExitErr() error {
	select {
	case <-p.waitDone:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.waitErr
	default:
		return nil
	}
}

// Terminate stops the process: SIGINT first, SIGKILL after grace.
// It returns once the process has exited. Terminating a process that
// already exited is a no-op.
func (p *Process) Terminate(grace time.Duration) error {
	// Nothing reads output after termination; keep draining so the
	// collector can reach end of stream.
	go p.drainRemaining()

	if !p.IsAlive() {
		return nil
	}

	common.LogInfo("Stopping OpenVPN (pid %d)", p.Pid())
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil {
		common.LogDebug("SIGINT delivery failed: %v", err)
	}

	select {
	case <-p.waitDone:
		return nil
	case <-time.After(grace):
	}

	common.LogWarn("OpenVPN did not exit within %v, killing", grace)
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return common.WrapError(err, "failed to kill process")
	}
	<-p.waitDone
	return nil
}

// drainRemaining discards buffered output until the stream closes.
func (p *Process) drainRemaining() {
	for range p.lines {
	}
}
