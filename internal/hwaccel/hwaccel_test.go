package hwaccel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFakeFFmpeg(t *testing.T, body string) (script, calls string) {
	t.Helper()
	tmp := t.TempDir()
	calls = filepath.Join(tmp, "calls.log")
	script = filepath.Join(tmp, "ffmpeg")
	full := "#!/bin/sh\necho \"$*\" >> " + calls + "\n" + body
	if err := os.WriteFile(script, []byte(full), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return script, calls
}

func countCalls(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatalf("read calls: %v", err)
	}
	return strings.Count(string(data), "\n")
}

func TestParseEncoders(t *testing.T) {
	got := parseEncoders([]byte(encodersOutput))

	for _, name := range []string{"libx264", "h264_nvenc", "h264_qsv", "aac"} {
		if !got[name] {
			t.Errorf("expected %s in parsed encoders", name)
		}
	}
	if got["Encoders:"] || got["------"] || got["="] {
		t.Errorf("header lines parsed as encoders: %v", got)
	}
}

func TestDetector_SkipsAdvertisedButBrokenEncoder(t *testing.T) {
	// nvenc is listed but the trial encode fails; qsv works
	script, calls := writeFakeFFmpeg(t, `
case "$*" in
  *-encoders*) cat <<'EOF'
`+encodersOutput+`
EOF
  exit 0 ;;
  *h264_nvenc*) echo "Cannot load libcuda.so.1" >&2; exit 1 ;;
  *h264_qsv*) exit 0 ;;
esac
exit 1
`)

	d := NewDetector(script, false, nil)
	enc := d.Encoder(context.Background())
	if enc.Name != "h264_qsv" {
		t.Fatalf("Encoder() = %s, want h264_qsv", enc.Name)
	}

	first := countCalls(t, calls)
	if first != 3 {
		t.Fatalf("expected 3 ffmpeg invocations (list + 2 trials), got %d", first)
	}

	// cached for the process lifetime
	if again := d.Encoder(context.Background()); again.Name != "h264_qsv" {
		t.Fatalf("cached encoder = %s", again.Name)
	}
	if n := countCalls(t, calls); n != first {
		t.Fatalf("second call re-probed ffmpeg (%d calls)", n)
	}
}

func TestDetector_CancelledProbeNotCached(t *testing.T) {
	script, _ := writeFakeFFmpeg(t, `
case "$*" in
  *-encoders*) cat <<'EOF'
`+encodersOutput+`
EOF
  exit 0 ;;
  *h264_qsv*) exit 0 ;;
esac
exit 1
`)
	d := NewDetector(script, false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if enc := d.Encoder(ctx); enc.Name != Software.Name {
		t.Fatalf("Encoder(cancelled) = %s, want software fallback", enc.Name)
	}
	if _, ok := d.Peek(); ok {
		t.Fatal("result of a cancelled probe was cached")
	}

	if enc := d.Encoder(context.Background()); enc.Name != "h264_qsv" {
		t.Fatalf("Encoder() = %s, want h264_qsv after retry", enc.Name)
	}
	if enc, ok := d.Peek(); !ok || enc.Name != "h264_qsv" {
		t.Fatalf("Peek() = %v, %v", enc, ok)
	}
}

func TestDetector_FallsBackToSoftware(t *testing.T) {
	script, _ := writeFakeFFmpeg(t, `
case "$*" in
  *-encoders*) echo " V....D libx264              libx264 H.264"; exit 0 ;;
esac
exit 1
`)

	enc := NewDetector(script, false, nil).Encoder(context.Background())
	if enc.Name != Software.Name {
		t.Fatalf("Encoder() = %s, want %s", enc.Name, Software.Name)
	}
}

func TestDetector_ListFailure(t *testing.T) {
	d := NewDetector(filepath.Join(t.TempDir(), "missing"), false, nil)
	if enc := d.Encoder(context.Background()); enc.Name != Software.Name {
		t.Fatalf("Encoder() = %s, want software fallback", enc.Name)
	}
}

func TestDetector_Disabled(t *testing.T) {
	script, calls := writeFakeFFmpeg(t, "exit 0\n")

	d := NewDetector(script, true, nil)
	if _, ok := d.Peek(); ok {
		t.Fatal("Peek() before detection should report nothing")
	}
	if enc := d.Encoder(context.Background()); enc.Name != Software.Name {
		t.Fatalf("Encoder() = %s", enc.Name)
	}
	if n := countCalls(t, calls); n != 0 {
		t.Fatalf("disabled detector ran ffmpeg %d times", n)
	}
	if enc, ok := d.Peek(); !ok || enc.Name != Software.Name {
		t.Fatalf("Peek() = %v, %v", enc, ok)
	}
}

func TestVideoArgs(t *testing.T) {
	tests := []struct {
		enc  Encoder
		want string
	}{
		{Software, "-c:v libx264 -preset medium -crf 18"},
		{NVENC, "-cq"},
		{QSV, "-global_quality"},
		{AMF, "-qp_i"},
		{VideoToolbox, "-q:v"},
	}
	for _, tt := range tests {
		t.Run(tt.enc.Name, func(t *testing.T) {
			joined := strings.Join(tt.enc.VideoArgs(), " ")
			if !strings.HasPrefix(joined, "-c:v "+tt.enc.Name) {
				t.Errorf("args %q do not select %s", joined, tt.enc.Name)
			}
			if !strings.Contains(joined, tt.want) {
				t.Errorf("args %q missing %q", joined, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("h264_nvenc"); got != "NVIDIA NVENC (GPU)" {
		t.Errorf("DisplayName(h264_nvenc) = %q", got)
	}
	if got := DisplayName("libx264"); got != "libx264 (CPU)" {
		t.Errorf("DisplayName(libx264) = %q", got)
	}
	if got := DisplayName("mpeg4"); got != "mpeg4" {
		t.Errorf("DisplayName(mpeg4) = %q", got)
	}
	if _, ok := Lookup("h264_amf"); !ok {
		t.Error("Lookup(h264_amf) failed")
	}
}

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V..... h264_qsv             H.264 / AVC / MPEG-4 AVC (Intel Quick Sync Video acceleration) (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)`
