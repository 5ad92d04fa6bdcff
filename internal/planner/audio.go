package planner

import (
	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/probe"
)

// BuildAudioPlan produces the audio strategy for an output.
//
//   - Probed source without audio streams → NoAudio (produces -an).
//   - Otherwise → AAC at the preset bitrate, sample rate and channel count,
//     never upmixing a mono source.
func BuildAudioPlan(a config.Audio, pr *probe.ProbeResult) (AudioPlan, error) {
	if pr != nil && len(pr.AudioStreams) == 0 {
		return AudioPlan{NoAudio: true}, nil
	}
	ch, err := a.ChannelCount()
	if err != nil {
		return AudioPlan{}, err
	}
	if pr != nil && pr.AudioStreams[0].Channels == 1 {
		ch = 1
	}
	return AudioPlan{
		Codec:      "aac",
		Bitrate:    a.Bitrate,
		SampleRate: a.SampleRate,
		Channels:   ch,
	}, nil
}
