package protocol

import (
	"errors"
	"testing"
)

// Helper function to build a valid response frame for testing
func buildTestResponse(mode ChecksumMode, statusCode byte, data []byte) []byte {
	return BuildCommand(mode, statusCode, data)
}

func TestResponseFrameVectors(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want string
	}{
		{"status only, sum", buildTestResponse(ChecksumSum, StatusSuccess, nil), "01000000ffff17"},
		{"status only, crc", buildTestResponse(ChecksumCRC16, StatusSuccess, nil), "01000000e06517"},
		{"one byte, sum", buildTestResponse(ChecksumSum, StatusSuccess, []byte{0x01}), "0100010001fdff17"},
		{"one byte, crc", buildTestResponse(ChecksumCRC16, StatusSuccess, []byte{0x01}), "01000100018f6617"},
		{
			"enter response, sum",
			buildTestResponse(ChecksumSum, StatusSuccess, []byte{0xAA, 0x02, 0x96, 0x1E, 0x00, 0x01, 0x1E, 0x00}),
			"01000800aa02961e00011e0078fe17",
		},
		{
			"enter response, crc",
			buildTestResponse(ChecksumCRC16, StatusSuccess, []byte{0xAA, 0x02, 0x96, 0x1E, 0x00, 0x01, 0x1E, 0x00}),
			"01000800aa02961e00011e003f9517",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := mustHex(t, tt.want)
			if string(tt.got) != string(want) {
				t.Errorf("frame = %x, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestParseDefault(t *testing.T) {
	tests := []struct {
		name       string
		frame      []byte
		size       int
		wantStatus byte
		wantErr    error
	}{
		{
			name:       "valid response with no data",
			frame:      buildTestResponse(ChecksumSum, StatusSuccess, nil),
			size:       ResponseSizeDefault,
			wantStatus: StatusSuccess,
		},
		{
			name:       "size mismatch",
			frame:      buildTestResponse(ChecksumSum, StatusSuccess, nil),
			size:       ResponseSizeVerifyChecksum,
			wantStatus: StatusSuccess,
			wantErr:    ErrLength,
		},
		{
			name:    "short buffer",
			frame:   []byte{0x01, 0x00, 0x00},
			size:    ResponseSizeDefault,
			wantErr: ErrLength,
		},
		{
			name:       "bad start marker",
			frame:      []byte{0x02, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0x17},
			size:       ResponseSizeDefault,
			wantStatus: StatusSuccess,
			wantErr:    ErrData,
		},
		{
			name:       "bad end marker",
			frame:      []byte{0x01, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0x18},
			size:       ResponseSizeDefault,
			wantStatus: StatusSuccess,
			wantErr:    ErrData,
		},
		{
			name:       "bad declared length",
			frame:      []byte{0x01, 0x00, 0x01, 0x00, 0xFF, 0xFF, 0x17},
			size:       ResponseSizeDefault,
			wantStatus: StatusSuccess,
			wantErr:    ErrData,
		},
		{
			name:       "checksum is not verified",
			frame:      []byte{0x01, 0x00, 0x00, 0x00, 0x12, 0x34, 0x17},
			size:       ResponseSizeDefault,
			wantStatus: StatusSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := ParseDefault(tt.frame, tt.size)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseDefault() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("ParseDefault() unexpected error = %v", err)
			}
			if status != tt.wantStatus {
				t.Errorf("status = 0x%02X, want 0x%02X", status, tt.wantStatus)
			}
		})
	}
}

func TestParseDefaultDeviceStatus(t *testing.T) {
	frame := buildTestResponse(ChecksumSum, StatusErrChecksum, nil)

	status, err := ParseDefault(frame, ResponseSizeDefault)
	if status != StatusErrChecksum {
		t.Errorf("status = 0x%02X, want 0x%02X", status, StatusErrChecksum)
	}

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
	if pe.StatusCode != StatusErrChecksum {
		t.Errorf("StatusCode = 0x%02X, want 0x%02X", pe.StatusCode, StatusErrChecksum)
	}
	if CodeOf(err) != BtldrMask|0x08 {
		t.Errorf("CodeOf() = 0x%04X, want 0x4008", uint16(CodeOf(err)))
	}
}

func TestParseCustom(t *testing.T) {
	frame := buildTestResponse(ChecksumSum, 0x20, []byte{0x01, 0x02})

	status, err := ParseCustom(frame, 2, len(frame), 0x20)
	if err != nil || status != 0x20 {
		t.Fatalf("ParseCustom() = 0x%02X, %v", status, err)
	}

	// success where another status was expected
	frame = buildTestResponse(ChecksumSum, StatusSuccess, []byte{0x01, 0x02})
	_, err = ParseCustom(frame, 2, len(frame), 0x20)
	if !errors.Is(err, ErrResponse) {
		t.Errorf("error = %v, want ErrResponse", err)
	}
}

func TestParseEnterBootloader(t *testing.T) {
	data := []byte{0xAA, 0x02, 0x96, 0x1E, 0x00, 0x01, 0x1E, 0x00}
	frame := buildTestResponse(ChecksumCRC16, StatusSuccess, data)

	info, status, err := ParseEnterBootloader(frame, ResponseSizeEnterBootloader)
	if err != nil {
		t.Fatalf("ParseEnterBootloader() error = %v", err)
	}
	if status != StatusSuccess {
		t.Errorf("status = 0x%02X", status)
	}
	if info.SiliconID != 0x1E9602AA {
		t.Errorf("SiliconID = 0x%08X, want 0x1E9602AA", info.SiliconID)
	}
	if info.SiliconRev != 0x00 {
		t.Errorf("SiliconRev = 0x%02X, want 0x00", info.SiliconRev)
	}
	if info.BootloaderVersion != 0x001E01 {
		t.Errorf("BootloaderVersion = 0x%06X, want 0x001E01", info.BootloaderVersion)
	}
	if got := info.VersionString(); got != "0.30.1" {
		t.Errorf("VersionString() = %q, want 0.30.1", got)
	}

	_, _, err = ParseEnterBootloader(buildTestResponse(ChecksumSum, StatusSuccess, nil), ResponseSizeDefault)
	if !errors.Is(err, ErrLength) {
		t.Errorf("short response error = %v, want ErrLength", err)
	}
}

func TestParseVerifyChecksum(t *testing.T) {
	tests := []struct {
		name      string
		frame     []byte
		wantValid bool
		wantErr   bool
	}{
		{"valid", buildTestResponse(ChecksumSum, StatusSuccess, []byte{0x01}), true, false},
		{"invalid", buildTestResponse(ChecksumSum, StatusSuccess, []byte{0x00}), false, false},
		{"device error", buildTestResponse(ChecksumSum, StatusErrApp, []byte{0x00}), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, _, err := ParseVerifyChecksum(tt.frame, ResponseSizeVerifyChecksum)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVerifyChecksum() error = %v, wantErr %v", err, tt.wantErr)
			}
			if valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", valid, tt.wantValid)
			}
		})
	}
}

func TestTryParseStatus(t *testing.T) {
	tests := []struct {
		name       string
		mode       ChecksumMode
		frame      []byte
		wantStatus byte
		wantErr    bool
	}{
		{
			name:       "well formed error status",
			mode:       ChecksumSum,
			frame:      buildTestResponse(ChecksumSum, StatusErrDevice, nil),
			wantStatus: StatusErrDevice,
		},
		{
			name:       "trailing bytes ignored",
			mode:       ChecksumCRC16,
			frame:      append(buildTestResponse(ChecksumCRC16, StatusErrKey, []byte{0x01}), 0xFF, 0xFF),
			wantStatus: StatusErrKey,
		},
		{
			name:    "wrong checksum mode",
			mode:    ChecksumCRC16,
			frame:   buildTestResponse(ChecksumSum, StatusErrDevice, nil),
			wantErr: true,
		},
		{
			name:    "too short",
			mode:    ChecksumSum,
			frame:   []byte{0x01, 0x06, 0x00},
			wantErr: true,
		},
		{
			name:    "no start marker",
			mode:    ChecksumSum,
			frame:   []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			wantErr: true,
		},
		{
			name:    "declared length past buffer",
			mode:    ChecksumSum,
			frame:   []byte{0x01, 0x06, 0x40, 0x00, 0x00, 0x00, 0x17},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := TryParseStatus(tt.mode, tt.frame)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknown) {
					t.Fatalf("TryParseStatus() error = %v, want ErrUnknown", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("TryParseStatus() error = %v", err)
			}
			if status != tt.wantStatus {
				t.Errorf("status = 0x%02X, want 0x%02X", status, tt.wantStatus)
			}
		})
	}
}

func TestDecodePacket(t *testing.T) {
	good := buildTestResponse(ChecksumSum, StatusSuccess, []byte{0x01, 0x02, 0x03})

	corrupt := append([]byte(nil), good...)
	corrupt[4] ^= 0x01

	long := append(append([]byte(nil), good...), 0x00)

	tests := []struct {
		name    string
		frame   []byte
		wantErr error
	}{
		{"valid", good, nil},
		{"corrupted payload", corrupt, ErrChecksum},
		{"extra byte", long, ErrLength},
		{"too short", good[:5], ErrLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePacket(ChecksumSum, tt.frame)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("DecodePacket() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodePacket() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
