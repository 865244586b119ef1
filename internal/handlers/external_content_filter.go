package handlers

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
	"github.com/alfmel/rsmtpd-go/internal/safeio"
)

// ExternalContentFilterConfig is ExternalContentFilterHandler's YAML
// configuration.
type ExternalContentFilterConfig struct {
	Command         []string `yaml:"command"`
	RejectThreshold float64  `yaml:"reject_threshold"`
	FlagThreshold   float64  `yaml:"flag_threshold"`
	Flags           []string `yaml:"flags"`
	Timeout         int      `yaml:"timeout_seconds"`
}

// ExternalContentFilterHandler runs the spooled message body through an
// external scoring command (the one place this server shells out to a
// subprocess), and rejects or flags the message based on the returned
// score. Grounded on
// rsmtpd.handlers.external_content_filter.ExternalContentFilter.
type ExternalContentFilterHandler struct {
	rsmtpd.HandlerBase
	config ExternalContentFilterConfig
}

func NewExternalContentFilterHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	h := &ExternalContentFilterHandler{HandlerBase: rsmtpd.NewHandlerBase("ExternalContentFilterHandler", log, loader, suffix)}
	_ = loader.Load("external_content_filter", suffix, &h.config)
	if h.config.Timeout <= 0 {
		h.config.Timeout = 30
	}
	return h, nil
}

func (h *ExternalContentFilterHandler) HandleData(line []byte, shared *rsmtpd.SharedState) error {
	return nil
}

func (h *ExternalContentFilterHandler) HandleDataEnd(shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	prior := shared.CurrentCommand.Response

	if len(h.config.Command) == 0 {
		h.Log.Infof("external content filter command is missing; no content filter will be done")
		return prior, nil
	}

	if shared.DataFilename == "" || prior == nil || prior.Code != 250 {
		h.Log.Infof("content filter skipped as there is nothing to filter")
		return prior, nil
	}

	rejectThreshold := h.config.RejectThreshold
	if rejectThreshold == 0 {
		rejectThreshold = 1e12
	}
	flagThreshold := h.config.FlagThreshold
	if flagThreshold == 0 {
		flagThreshold = 1e12
	}

	args := append(append([]string{}, h.config.Command[1:]...), shared.DataFilename)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.config.Command[0], args...)
	out, err := cmd.Output()
	if err != nil {
		h.Log.Errorf("external content filter exited with error: %v", err)
		return prior, nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		h.Log.Errorf("external content filter command did not return a numeric value; ignoring result")
		return prior, nil
	}

	h.Log.Infof("message %s received external content filter score of %v (flag threshold %v / reject threshold %v)",
		shared.TransactionID, value, flagThreshold, rejectThreshold)

	if value >= rejectThreshold {
		h.Log.Infof("message %s rejected by external content filter (score %v, threshold %v)",
			shared.TransactionID, value, rejectThreshold)
		return rsmtpd.New(550, "The content of message suggests this email is Spam"), nil
	}

	if value >= flagThreshold {
		h.Log.Infof("message %s flagged by external content filter (score %v, threshold %v)",
			shared.TransactionID, value, flagThreshold)
		h.flagMessage(shared.DataFilename, h.config.Flags)
	}

	return prior, nil
}

// flagMessage inserts the configured flag lines right after the header
// block (the first blank line), or at the end of the file if no blank
// line is found. The rewritten message is written back atomically via
// safeio.WriteFile, so a crash mid-rewrite never leaves a truncated
// spool file in place.
func (h *ExternalContentFilterHandler) flagMessage(filename string, flags []string) {
	if len(flags) == 0 {
		return
	}

	in, err := os.Open(filename)
	if err != nil {
		h.Log.Errorf("unable to tag message: %v", err)
		return
	}
	defer in.Close()

	var out bytes.Buffer
	writeFlags := func() {
		for _, flag := range flags {
			out.WriteString(flag + "\r\n")
		}
	}

	inserted := false
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !inserted && (line == "\r" || line == "") {
			writeFlags()
			inserted = true
		}
		out.WriteString(line + "\n")
	}
	if !inserted {
		writeFlags()
	}

	if err := safeio.WriteFile(filename, out.Bytes(), 0o600); err != nil {
		h.Log.Errorf("unable to tag message: %v", err)
	}
}
