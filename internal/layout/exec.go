package layout

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/config"
	"github.com/ironsheep/layout-detect/internal/imaging"
)

const (
	// maxStderrTail bounds how much sidecar stderr ends up in an error message.
	maxStderrTail = 512

	// exitGrace is how long a sidecar gets to exit before it is killed.
	exitGrace = 5 * time.Second
)

// ExecBackend keeps one inference process alive for the lifetime of the
// backend. The process is started as
//
//	<command...> <script> --config <model> --threshold <t> --classes <n>
//
// loads the model, prints {"ready": true} and then answers every image path
// written to its stdin with one JSON line: a prediction array or
// {"error": "..."}.
type ExecBackend struct {
	command     []string
	script      string
	modelConfig string
	threshold   float64
	classes     int
	logger      logrus.FieldLogger

	// scriptPath is the script actually run; a temp copy of the embedded
	// sidecar unless cfg.Script names one.
	scriptPath string
	ownsScript bool

	mu   sync.Mutex
	proc *sidecarProc
}

// NewExecBackend returns an unloaded exec backend.
func NewExecBackend(cfg config.ModelConfig, logger logrus.FieldLogger) *ExecBackend {
	classes := 0
	for idx := range cfg.LabelMap {
		if idx+1 > classes {
			classes = idx + 1
		}
	}
	if classes == 0 {
		classes = len(PubLayNetLabels())
	}
	return &ExecBackend{
		command:     append([]string(nil), cfg.Command...),
		script:      cfg.Script,
		modelConfig: cfg.ConfigPath,
		threshold:   cfg.ScoreThreshold,
		classes:     classes,
		logger:      logger,
	}
}

func (e *ExecBackend) Name() string { return "exec" }

// Load checks the interpreter, materialises the sidecar script and starts
// it. The model is built before the sidecar reports ready, so missing
// packages and missing weights both surface here.
func (e *ExecBackend) Load(ctx context.Context) error {
	if len(e.command) == 0 {
		return errors.New("no inference command configured")
	}
	if _, err := exec.LookPath(e.command[0]); err != nil {
		return fmt.Errorf("inference command not found: %w", err)
	}

	if e.script != "" {
		if _, err := os.Stat(e.script); err != nil {
			return fmt.Errorf("sidecar script: %w", err)
		}
		e.scriptPath = e.script
	} else if e.scriptPath == "" {
		f, err := os.CreateTemp("", "layout-sidecar-*.py")
		if err != nil {
			return fmt.Errorf("failed to create sidecar script: %w", err)
		}
		if _, err := f.WriteString(sidecarScript); err != nil {
			f.Close()
			os.Remove(f.Name())
			return fmt.Errorf("failed to write sidecar script: %w", err)
		}
		f.Close()
		e.scriptPath = f.Name()
		e.ownsScript = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc != nil {
		return nil
	}
	proc, err := e.start(ctx)
	if err != nil {
		return err
	}
	e.proc = proc
	e.logger.WithFields(logrus.Fields{
		"command": strings.Join(e.command, " "),
		"model":   e.modelConfig,
		"pid":     proc.cmd.Process.Pid,
	}).Debug("sidecar ready")
	return nil
}

func (e *ExecBackend) Infer(ctx context.Context, img image.Image) ([]Prediction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scriptPath == "" {
		return nil, errors.New("backend not loaded")
	}
	if e.proc == nil {
		e.logger.Warn("restarting sidecar")
		proc, err := e.start(ctx)
		if err != nil {
			return nil, err
		}
		e.proc = proc
	}

	tmpPath, err := imaging.SaveToTemp(img, "layout-input")
	if err != nil {
		return nil, fmt.Errorf("failed to stage image: %w", err)
	}
	defer os.Remove(tmpPath)

	line, err := e.proc.request(ctx, tmpPath)
	if err != nil {
		// The stream is out of step after any transport failure.
		e.proc.kill()
		e.proc = nil
		return nil, err
	}
	return parsePredictions(line)
}

// parsePredictions decodes one sidecar answer.
func parsePredictions(line []byte) ([]Prediction, error) {
	if line[0] == '{' {
		var failure struct {
			Error string `json:"error"`
		}
		if err := jsoniter.Unmarshal(line, &failure); err != nil || failure.Error == "" {
			return nil, fmt.Errorf("invalid sidecar output: %s", tail(string(line), maxStderrTail))
		}
		return nil, fmt.Errorf("sidecar: %s", failure.Error)
	}

	var preds []Prediction
	if err := jsoniter.Unmarshal(line, &preds); err != nil {
		return nil, fmt.Errorf("invalid sidecar output: %w", err)
	}
	if preds == nil {
		preds = []Prediction{}
	}
	return preds, nil
}

// Close stops the sidecar and removes the embedded script.
func (e *ExecBackend) Close() error {
	e.mu.Lock()
	if e.proc != nil {
		e.proc.stop()
		e.proc = nil
	}
	e.mu.Unlock()

	if e.ownsScript && e.scriptPath != "" {
		err := os.Remove(e.scriptPath)
		e.scriptPath = ""
		e.ownsScript = false
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// start launches the sidecar and waits for its ready line.
func (e *ExecBackend) start(ctx context.Context) (*sidecarProc, error) {
	args := append([]string{}, e.command[1:]...)
	args = append(args,
		e.scriptPath,
		"--config", e.modelConfig,
		"--threshold", strconv.FormatFloat(e.threshold, 'f', -1, 64),
		"--classes", strconv.Itoa(e.classes),
	)

	// Not CommandContext: the process outlives ctx.
	cmd := exec.Command(e.command[0], args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to start sidecar: %w", err)
	}
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	stderr := &tailBuffer{limit: 64 << 10}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start sidecar: %w", err)
	}

	p := &sidecarProc{
		cmd:    cmd,
		stdin:  stdin,
		pr:     pr,
		out:    bufio.NewReader(pr),
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		pw.Close()
		close(p.done)
	}()

	line, err := p.readLine(ctx)
	if err != nil {
		p.kill()
		return nil, err
	}
	var ready struct {
		Ready bool `json:"ready"`
	}
	if err := jsoniter.Unmarshal(line, &ready); err != nil || !ready.Ready {
		p.kill()
		return nil, fmt.Errorf("unexpected sidecar handshake: %s", tail(string(line), maxStderrTail))
	}
	return p, nil
}

// sidecarProc is one running sidecar. Callers serialise access.
type sidecarProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	pr     *io.PipeReader
	out    *bufio.Reader
	stderr *tailBuffer

	done    chan struct{}
	waitErr error

	killOnce sync.Once
}

// request sends one image path and returns the answer line.
func (p *sidecarProc) request(ctx context.Context, path string) ([]byte, error) {
	if _, err := io.WriteString(p.stdin, path+"\n"); err != nil {
		return nil, p.exitError()
	}
	return p.readLine(ctx)
}

// readLine returns the next JSON line on stdout. Other output (library
// banners, progress bars) is skipped.
func (p *sidecarProc) readLine(ctx context.Context) ([]byte, error) {
	type result struct {
		line []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			line, err := p.out.ReadBytes('\n')
			line = bytes.TrimSpace(line)
			if err == nil && len(line) > 0 && (line[0] == '{' || line[0] == '[') {
				ch <- result{line: line}
				return
			}
			if err != nil {
				ch <- result{err: err}
				return
			}
		}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, p.exitError()
		}
		return r.line, nil
	case <-ctx.Done():
		p.kill()
		return nil, fmt.Errorf("sidecar interrupted: %w", ctx.Err())
	}
}

// exitError waits for the process to go away and describes why it did.
func (p *sidecarProc) exitError() error {
	select {
	case <-p.done:
	case <-time.After(exitGrace):
		p.kill()
		<-p.done
	}
	msg := tail(p.stderr.String(), maxStderrTail)
	if p.waitErr != nil {
		return fmt.Errorf("sidecar failed: %w: %s", p.waitErr, msg)
	}
	return fmt.Errorf("sidecar exited: %s", msg)
}

func (p *sidecarProc) kill() {
	p.killOnce.Do(func() {
		p.cmd.Process.Kill()
		p.pr.Close()
	})
}

// stop closes stdin so the sidecar exits on its own, killing it after
// exitGrace.
func (p *sidecarProc) stop() {
	p.stdin.Close()
	select {
	case <-p.done:
	case <-time.After(exitGrace):
		p.kill()
		<-p.done
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		b.buf = append([]byte(nil), b.buf[len(b.buf)-b.limit:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// tail returns the last n bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
