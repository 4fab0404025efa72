package ffprobe_test

import (
	"encoding/json"
	"testing"

	"aircheck/internal/media/ffprobe"
)

func TestResultAccessors(t *testing.T) {
	payload := `{
        "streams": [
            {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
            {"index": 1, "codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2},
            {"index": 2, "codec_type": "audio", "codec_name": "ac3", "sample_rate": "48000", "channels": 6}
        ],
        "format": {"filename": "clip.mkv", "nb_streams": 3, "duration": "93.5", "format_name": "matroska"}
    }`

	var result ffprobe.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	if got := result.VideoStreamCount(); got != 1 {
		t.Fatalf("VideoStreamCount = %d, want 1", got)
	}
	if got := result.AudioStreamCount(); got != 2 {
		t.Fatalf("AudioStreamCount = %d, want 2", got)
	}
	if got := result.DurationSeconds(); got != 93.5 {
		t.Fatalf("DurationSeconds = %v, want 93.5", got)
	}
}

func TestDurationHandlesMissingAndGarbage(t *testing.T) {
	var empty ffprobe.Result
	if got := empty.DurationSeconds(); got != 0 {
		t.Fatalf("empty duration = %v, want 0", got)
	}

	garbage := ffprobe.Result{Format: ffprobe.Format{Duration: "N/A"}}
	if got := garbage.DurationSeconds(); got != 0 {
		t.Fatalf("garbage duration = %v, want 0", got)
	}
}
