package bootloader

import (
	"github.com/moffa90/go-cyacd2/cyacd"
	"github.com/moffa90/go-cyacd2/protocol"
)

// sendRow programs or verifies one row. Rows that do not fit one packet
// are streamed with send-data first; the final program/verify-data
// command carries the rest and the CRC32C of the whole row.
func (s *session) sendRow(cmd byte, row *cyacd.Row) error {
	crc := protocol.CRC32C(row.Data)

	packetSize := s.t.DataPacketSize()
	maxRemaining := 0
	if packetSize >= protocol.ProgramDataFrameOverhead {
		maxRemaining = packetSize - protocol.ProgramDataFrameOverhead
	}

	rest, err := s.sendData(row.Data, maxRemaining)
	if err != nil {
		return err
	}

	var final protocol.Packet
	op := "program data"
	if cmd == protocol.CmdVerifyData {
		op = "verify data"
		final = protocol.BuildVerifyDataCmd(s.mode, row.Address, crc, rest)
	} else {
		final = protocol.BuildProgramDataCmd(s.mode, row.Address, crc, rest)
	}
	return s.exchange(op, final)
}

// sendData sends data in send-data commands until at most maxRemaining
// bytes are left, and returns what is left.
func (s *session) sendData(data []byte, maxRemaining int) ([]byte, error) {
	chunkSize := s.t.DataPacketSize() - protocol.BaseCmdSize
	if chunkSize > len(data) {
		chunkSize = len(data)
	}

	for len(data) > maxRemaining {
		n := chunkSize
		if n > len(data) {
			n = len(data)
		}

		if s.p.config.UnacknowledgedSendData {
			cmd := protocol.BuildSendDataNoResponseCmd(s.mode, data[:n])
			if err := s.t.WriteData(cmd); err != nil {
				return nil, &protocol.CommError{Op: "write", Err: err}
			}
		} else if err := s.exchange("send data", protocol.BuildSendDataCmd(s.mode, data[:n])); err != nil {
			return nil, err
		}
		data = data[n:]
	}
	return data, nil
}

func (s *session) eraseRow(row *cyacd.Row) error {
	return s.exchange("erase data", protocol.BuildEraseDataCmd(s.mode, row.Address))
}
