package gemini

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
)

// Client → server messages of the BidiGenerateContent protocol.

type liveClientMessage struct {
	Setup         *liveSetup         `json:"setup,omitempty"`
	RealtimeInput *liveRealtimeInput `json:"realtimeInput,omitempty"`
}

type liveSetup struct {
	Model                    string                `json:"model"`
	GenerationConfig         *liveGenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *liveContent          `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}             `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}             `json:"outputAudioTranscription,omitempty"`
}

type liveGenerationConfig struct {
	ResponseModalities []string          `json:"responseModalities,omitempty"`
	SpeechConfig       *liveSpeechConfig `json:"speechConfig,omitempty"`
}

type liveSpeechConfig struct {
	VoiceConfig liveVoiceConfig `json:"voiceConfig"`
}

type liveVoiceConfig struct {
	PrebuiltVoiceConfig livePrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type livePrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type liveContent struct {
	Parts []livePart `json:"parts"`
}

type livePart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *liveBlob `json:"inlineData,omitempty"`
}

type liveBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type liveRealtimeInput struct {
	Audio *liveBlob `json:"audio,omitempty"`
}

// Server → client messages.

type liveServerMessage struct {
	SetupComplete *struct{}          `json:"setupComplete,omitempty"`
	ServerContent *liveServerContent `json:"serverContent,omitempty"`
	GoAway        *liveGoAway        `json:"goAway,omitempty"`
	UsageMetadata json.RawMessage    `json:"usageMetadata,omitempty"`
}

type liveServerContent struct {
	ModelTurn           *liveContent       `json:"modelTurn,omitempty"`
	TurnComplete        bool               `json:"turnComplete,omitempty"`
	Interrupted         bool               `json:"interrupted,omitempty"`
	InputTranscription  *liveTranscription `json:"inputTranscription,omitempty"`
	OutputTranscription *liveTranscription `json:"outputTranscription,omitempty"`
}

type liveTranscription struct {
	Text string `json:"text"`
}

type liveGoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

func buildLiveSetup(model string, cfg core.LiveConfig) liveClientMessage {
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	setup := &liveSetup{
		Model: model,
		GenerationConfig: &liveGenerationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}
	if cfg.Voice != "" {
		setup.GenerationConfig.SpeechConfig = &liveSpeechConfig{
			VoiceConfig: liveVoiceConfig{PrebuiltVoiceConfig: livePrebuiltVoice{VoiceName: cfg.Voice}},
		}
	}
	if cfg.System != "" {
		setup.SystemInstruction = &liveContent{Parts: []livePart{{Text: cfg.System}}}
	}
	if cfg.TranscribeInput {
		setup.InputAudioTranscription = &struct{}{}
	}
	if cfg.TranscribeOutput {
		setup.OutputAudioTranscription = &struct{}{}
	}
	return liveClientMessage{Setup: setup}
}

func buildAudioInput(pcm []byte, sampleRate int) liveClientMessage {
	return liveClientMessage{RealtimeInput: &liveRealtimeInput{Audio: &liveBlob{
		MIMEType: audio.MIMEType(sampleRate),
		Data:     audio.EncodeBase64(pcm),
	}}}
}

// decodeLiveFrame turns one server frame into events. setupDone reports the
// setup acknowledgement, which carries no event of its own.
func decodeLiveFrame(data []byte, defaultRate int) (events []core.LiveEvent, setupDone bool, err error) {
	var msg liveServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false, fmt.Errorf("decode live frame: %w", err)
	}
	if msg.SetupComplete != nil {
		setupDone = true
	}

	sc := msg.ServerContent
	if sc == nil {
		return nil, setupDone, nil
	}
	if sc.Interrupted {
		events = append(events, core.Interrupted{})
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		events = append(events, core.TranscriptFragment{Speaker: core.SpeakerUser, Text: sc.InputTranscription.Text})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		events = append(events, core.TranscriptFragment{Speaker: core.SpeakerModel, Text: sc.OutputTranscription.Text})
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MIMEType, "audio/pcm") {
				continue
			}
			pcm, err := audio.DecodeBase64(part.InlineData.Data)
			if err != nil {
				return nil, setupDone, fmt.Errorf("decode live audio: %w", err)
			}
			events = append(events, core.AudioPayload{PCM: pcm, SampleRate: rateFromMIME(part.InlineData.MIMEType, defaultRate)})
		}
	}
	if sc.TurnComplete {
		events = append(events, core.TurnComplete{})
	}
	return events, setupDone, nil
}

// rateFromMIME reads the rate parameter of "audio/pcm;rate=24000".
func rateFromMIME(mime string, def int) int {
	for _, param := range strings.Split(mime, ";")[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || k != "rate" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
