package bootloader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moffa90/go-cyacd2/cyacd"
	"github.com/moffa90/go-cyacd2/protocol"
	"github.com/moffa90/go-cyacd2/transport"
)

// session is the state of one RunAction call.
type session struct {
	p      *Programmer
	t      transport.Transport
	header *cyacd.Header
	mode   protocol.ChecksumMode

	device  *protocol.DeviceInfo
	bounds  cyacd.AppBounds
	entered bool

	started   time.Time
	phase     string
	line      int
	rowsDone  int
	bytesDone int
}

func newSession(p *Programmer, header *cyacd.Header) *session {
	return &session{
		p:       p,
		t:       p.transport,
		header:  header,
		mode:    protocol.ChecksumModeFromType(header.ChecksumType),
		started: time.Now(),
		line:    1,
	}
}

// run drives Closed → Connected → Entered → RowLoop → Finalizing → Closed.
func (s *session) run(ctx context.Context, action Action, img *cyacd.Image) (err error) {
	if err := s.t.Open(); err != nil {
		return &protocol.CommError{Op: "open", Err: err}
	}
	defer func() {
		if cerr := s.t.Close(); cerr != nil {
			s.p.logError("close transport failed", "error", cerr)
			if err == nil {
				err = &protocol.CommError{Op: "close", Err: cerr}
			}
		}
	}()

	s.report(PhaseEntering)
	err = s.enter()
	s.entered = true

	if err == nil {
		s.bounds, err = img.ScanAppBounds()
	}
	if err == nil {
		err = s.setMetadata()
	}
	if err == nil {
		s.phase = rowPhase(action)
		err = s.rowLoop(ctx, action, img)
	}
	if err == nil && action != ActionErase {
		s.report(PhaseVerifying)
		err = s.verifyApplication()
	}

	// A dead link gets no exit command.
	if s.entered && !protocol.IsCommError(err) {
		s.report(PhaseExiting)
		s.exit()
	}

	if err == nil {
		s.report(PhaseComplete)
	}
	return err
}

func rowPhase(action Action) string {
	switch action {
	case ActionErase:
		return PhaseErasing
	case ActionVerify:
		return PhaseVerifying
	default:
		return PhaseProgramming
	}
}

// enter starts the bootload session and checks the device against the
// image header.
func (s *session) enter() error {
	productID := s.header.ProductID
	if s.p.config.ProductID != 0 {
		productID = s.p.config.ProductID
	}

	cmd := protocol.BuildEnterBootloaderCmd(s.mode, productID)
	resp, err := s.transfer(cmd, protocol.ResponseSizeEnterBootloader)
	if err != nil {
		// A bootloader that refuses to enter answers with a short error
		// frame, which makes the full-size read fail.
		if status, perr := protocol.TryParseStatus(s.mode, resp); perr == nil && status != protocol.StatusSuccess {
			return &protocol.ProtocolError{Operation: "enter bootloader", StatusCode: status}
		}
		return err
	}

	info, _, err := protocol.ParseEnterBootloader(resp, protocol.ResponseSizeEnterBootloader)
	if err != nil {
		return err
	}
	s.device = info

	s.p.logDebug("entered bootloader",
		"silicon_id", fmt.Sprintf("0x%08X", info.SiliconID),
		"silicon_rev", fmt.Sprintf("0x%02X", info.SiliconRev),
		"bootloader_ver", info.VersionString(),
		"checksum", s.mode.String(),
	)

	if info.SiliconID != s.header.SiliconID || info.SiliconRev != s.header.SiliconRev {
		return &DeviceMismatchError{
			ExpectedID:  s.header.SiliconID,
			ActualID:    info.SiliconID,
			ExpectedRev: s.header.SiliconRev,
			ActualRev:   info.SiliconRev,
		}
	}
	return nil
}

func (s *session) setMetadata() error {
	s.p.logDebug("application metadata",
		"app_id", s.header.AppID,
		"start", fmt.Sprintf("0x%08X", s.bounds.Start),
		"size", s.bounds.Size,
		"rows", s.bounds.DataLines,
	)
	cmd := protocol.BuildSetMetadataCmd(s.mode, s.header.AppID, s.bounds.Start, s.bounds.Size)
	return s.exchange("set metadata", cmd)
}

// rowLoop applies action to every remaining line of img. An abort request
// or a cancelled ctx is honored before each line.
func (s *session) rowLoop(ctx context.Context, action Action, img *cyacd.Image) error {
	for {
		if s.p.takeAbort() {
			return protocol.NewError(protocol.CodeAbort, "run action", "aborted after %d rows", s.rowsDone)
		}
		if err := ctx.Err(); err != nil {
			return &protocol.Error{Code: protocol.CodeAbort, Op: "run action", Msg: fmt.Sprintf("cancelled after %d rows", s.rowsDone), Err: err}
		}

		line, err := img.NextLine()
		if err != nil {
			if protocol.CodeOf(err) == protocol.CodeEOF {
				return nil
			}
			return err
		}
		s.line++

		switch {
		case strings.HasPrefix(line, cyacd.MetaRowPrefix):
			err = s.processMetaRow(line)
		case strings.HasPrefix(line, cyacd.DataRowPrefix):
			err = s.processDataRow(action, line)
		}
		if err != nil {
			return err
		}
	}
}

// processMetaRow handles "@" lines. Only @EIV reaches the device; @APPINFO
// was consumed by the bounds scan.
func (s *session) processMetaRow(line string) error {
	if !strings.HasPrefix(line, cyacd.EIVPrefix) {
		return nil
	}
	iv, err := cyacd.ParseEIV(line)
	if err != nil {
		return fmt.Errorf("line %d: %w", s.line, err)
	}
	cmd, err := protocol.BuildSetEncryptionIVCmd(s.mode, iv)
	if err != nil {
		return fmt.Errorf("line %d: %w", s.line, err)
	}
	s.p.logDebug("encryption IV", "length", len(iv))
	return s.exchange("set encryption IV", cmd)
}

func (s *session) processDataRow(action Action, line string) error {
	row, err := cyacd.ParseRow(line)
	if err != nil {
		return fmt.Errorf("line %d: %w", s.line, err)
	}

	switch action {
	case ActionErase:
		err = s.eraseRow(row)
	case ActionVerify:
		err = s.sendRow(protocol.CmdVerifyData, row)
	default:
		err = s.sendRow(protocol.CmdProgramData, row)
	}
	if err != nil {
		return &RowError{Line: s.line, Address: row.Address, Err: err}
	}

	s.rowsDone++
	s.bytesDone += len(row.Data)
	s.report(s.phase)
	return nil
}

func (s *session) verifyApplication() error {
	cmd := protocol.BuildVerifyChecksumCmd(s.mode, s.header.AppID)
	resp, err := s.transfer(cmd, protocol.ResponseSizeVerifyChecksum)
	if err != nil {
		return err
	}
	valid, _, err := protocol.ParseVerifyChecksum(resp, protocol.ResponseSizeVerifyChecksum)
	if err != nil {
		return err
	}
	if !valid {
		return &VerificationError{AppID: s.header.AppID}
	}
	return nil
}

// exit leaves the bootloader. The device resets without answering, so
// the command is only written, and a failure is logged.
func (s *session) exit() {
	cmd := protocol.BuildExitBootloaderCmd(s.mode)
	if err := s.t.WriteData(cmd); err != nil {
		s.p.logError("exit bootloader failed", "error", err)
	}
}

// exchange sends cmd and checks the default acknowledgement.
func (s *session) exchange(op string, cmd protocol.Packet) error {
	resp, err := s.transfer(cmd, protocol.ResponseSizeDefault)
	if err != nil {
		return err
	}
	if _, err := protocol.ParseDefault(resp, protocol.ResponseSizeDefault); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// transfer writes cmd and reads a response of respSize bytes. On a read
// failure the partial response is returned with the error.
func (s *session) transfer(cmd protocol.Packet, respSize int) ([]byte, error) {
	return transferOn(s.t, s.p.config.CommandDelay, cmd, respSize)
}

func transferOn(t transport.Transport, delay time.Duration, cmd []byte, respSize int) ([]byte, error) {
	if err := t.WriteData(cmd); err != nil {
		return nil, &protocol.CommError{Op: "write", Err: err}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	resp := make([]byte, respSize)
	if err := t.ReadData(resp); err != nil {
		return resp, &protocol.CommError{Op: "read", Err: err}
	}
	return resp, nil
}

func (s *session) report(phase string) {
	total := int(s.bounds.DataLines)
	var fraction float64
	switch {
	case phase == PhaseComplete:
		fraction = 1
	case total > 0:
		fraction = float64(s.rowsDone) / float64(total)
		if fraction > 1 {
			fraction = 1
		}
	}
	s.p.reportProgress(Progress{
		Phase:        phase,
		CurrentRow:   s.rowsDone,
		TotalRows:    total,
		Fraction:     fraction,
		Percentage:   fraction * 100,
		BytesWritten: s.bytesDone,
		ElapsedTime:  time.Since(s.started),
	})
}
