package protocol

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestCommandFrames(t *testing.T) {
	tests := []struct {
		name    string
		sumMode Packet
		crcMode Packet
		wantSum string
		wantCRC string
	}{
		{
			name:    "exit bootloader",
			sumMode: BuildExitBootloaderCmd(ChecksumSum),
			crcMode: BuildExitBootloaderCmd(ChecksumCRC16),
			wantSum: "013b0000c4ff17",
			wantCRC: "013b00004f6d17",
		},
		{
			name:    "enter bootloader",
			sumMode: BuildEnterBootloaderCmd(ChecksumSum, 0x05040302),
			crcMode: BuildEnterBootloaderCmd(ChecksumCRC16, 0x05040302),
			wantSum: "0138040002030405b5ff17",
			wantCRC: "0138040002030405fc1917",
		},
		{
			name:    "verify checksum",
			sumMode: BuildVerifyChecksumCmd(ChecksumSum, 0x01),
			crcMode: BuildVerifyChecksumCmd(ChecksumCRC16, 0x01),
			wantSum: "0131010001ccff17",
			wantCRC: "0131010001df2f17",
		},
		{
			name:    "erase data",
			sumMode: BuildEraseDataCmd(ChecksumSum, 0x00000100),
			crcMode: BuildEraseDataCmd(ChecksumCRC16, 0x00000100),
			wantSum: "0144040000010000b6ff17",
			wantCRC: "0144040000010000e0cc17",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hex.EncodeToString(tt.sumMode); got != tt.wantSum {
				t.Errorf("sum mode frame = %s, want %s", got, tt.wantSum)
			}
			if got := hex.EncodeToString(tt.crcMode); got != tt.wantCRC {
				t.Errorf("crc mode frame = %s, want %s", got, tt.wantCRC)
			}
		})
	}
}

func TestBuildEnterBootloaderCmdExtendedProductID(t *testing.T) {
	frame := BuildEnterBootloaderCmd(ChecksumSum, 0x1234_05040302)
	want := mustHex(t, "013806000203040534126dff17")
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = %X, want %X", []byte(frame), want)
	}
}

func TestBuildSetMetadataCmd(t *testing.T) {
	frame := BuildSetMetadataCmd(ChecksumSum, 0x01, 0x10000000, 0x200)
	want := mustHex(t, "014c090001000000100002000097ff17")
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = %X, want %X", []byte(frame), want)
	}
}

func TestBuildProgramDataCmd(t *testing.T) {
	row := []byte{0x01, 0x02, 0x03, 0x04}
	frame := BuildProgramDataCmd(ChecksumSum, 0x10000000, CRC32C(row), row)
	want := mustHex(t, "01490c0000000010f48c302901020304b7fd17")
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = %X, want %X", []byte(frame), want)
	}

	verify := BuildVerifyDataCmd(ChecksumSum, 0x10000000, CRC32C(row), row)
	if verify.Command() != CmdVerifyData {
		t.Errorf("verify command = 0x%02X, want 0x%02X", verify.Command(), CmdVerifyData)
	}
	if !bytes.Equal(verify.Data(), frame[4:4+12]) {
		t.Errorf("verify payload = %X, want %X", verify.Data(), frame[4:16])
	}
}

func TestBuildSendDataCmds(t *testing.T) {
	chunk := bytes.Repeat([]byte{0xA5}, 57)

	frame := BuildSendDataCmd(ChecksumCRC16, chunk)
	if frame.Command() != CmdSendData || !bytes.Equal(frame.Data(), chunk) {
		t.Errorf("send data frame = %X", []byte(frame))
	}

	frame = BuildSendDataNoResponseCmd(ChecksumCRC16, chunk)
	if frame.Command() != CmdSendDataNoResponse || len(frame) != BaseCmdSize+len(chunk) {
		t.Errorf("send data no response frame = %X", []byte(frame))
	}
}

func TestBuildSetEncryptionIVCmd(t *testing.T) {
	tests := []struct {
		name    string
		iv      []byte
		want    string
		wantErr bool
	}{
		{name: "empty vector", iv: nil, want: "014d0000b2ff17"},
		{name: "8 byte vector", iv: make([]byte, 8)},
		{name: "16 byte vector", iv: make([]byte, 16)},
		{name: "invalid length", iv: make([]byte, 5), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := BuildSetEncryptionIVCmd(ChecksumSum, tt.iv)
			if tt.wantErr {
				if !errors.Is(err, ErrLength) {
					t.Fatalf("error = %v, want ErrLength", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if frame.DataLen() != len(tt.iv) {
				t.Errorf("payload length = %d, want %d", frame.DataLen(), len(tt.iv))
			}
			if tt.want != "" && hex.EncodeToString(frame) != tt.want {
				t.Errorf("frame = %x, want %s", []byte(frame), tt.want)
			}
		})
	}
}

func TestBuildSyncBootloaderCmd(t *testing.T) {
	if got := hex.EncodeToString(BuildSyncBootloaderCmd(ChecksumSum)); got != "01350000caff17" {
		t.Errorf("frame = %s", got)
	}
}

func TestBuildCustomCmd(t *testing.T) {
	frame, err := BuildCustomCmd(ChecksumSum, 0x60, []byte{0x01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Command() != 0x60 || frame.DataLen() != 1 {
		t.Errorf("frame = %X", []byte(frame))
	}

	_, err = BuildCustomCmd(ChecksumSum, 0x60, make([]byte, MaxDataSize+1))
	if !errors.Is(err, ErrLength) {
		t.Errorf("oversized payload error = %v, want ErrLength", err)
	}
}

func TestBuildCommandRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 57, 256, MaxDataSize}
	for _, mode := range []ChecksumMode{ChecksumSum, ChecksumCRC16} {
		for _, n := range sizes {
			payload := make([]byte, n)
			for i := range payload {
				payload[i] = byte(i * 7)
			}

			frame := BuildCommand(mode, 0x49, payload)
			if len(frame) != n+BaseCmdSize {
				t.Fatalf("%v/%d: frame length = %d", mode, n, len(frame))
			}

			p, err := DecodePacket(mode, frame)
			if err != nil {
				t.Fatalf("%v/%d: DecodePacket() error = %v", mode, n, err)
			}
			if p.Command() != 0x49 || !bytes.Equal(p.Data(), payload) {
				t.Errorf("%v/%d: round trip mismatch", mode, n)
			}
		}
	}
}

func TestBootloaderActiveProbe(t *testing.T) {
	probe := BootloaderActiveProbe()
	if !bytes.Equal(probe, []byte{0x00, 0x00, 0x01, 0xEE, 0x17}) {
		t.Errorf("probe = %X", probe)
	}
	probe[0] = 0xFF
	if BootloaderActiveProbe()[0] != 0x00 {
		t.Error("probe must return a fresh slice")
	}
}
