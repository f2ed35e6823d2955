package config

// DefaultYAML is written when no config file exists. Every value matches
// Default.
const DefaultYAML = `# speech engine: edge, tencent or mock
engine: "edge"

# voice per language; unset languages use the engine's first voice
# (see "dictate voices")
voices:
  # en: "en-US-AriaNeural"
  # zh-tw: "zh-TW-HsiaoChenNeural"

# default speaking speed per language (0.5 to 2.0)
speeds:
  en: 1.0
  zh-tw: 0.9

# send vocabulary as written instead of reading punctuation aloud
literal_words: false

# vocabulary lists: every word twice, three seconds to write it down
vocabulary:
  repeats: 2
  shuffle: false
  # fixes the shuffled order; 0 picks a new seed every run
  seed: 0
  silence_ms: 3000
  leading_silence_ms: 0
  tail_silence_ms: 3000
  # repeat_silence_ms: 1500
  # overrides the language speed when set
  speed: 0.8

# passages: every sentence three times
passage:
  repeats: 3
  shuffle: false
  seed: 0
  silence_ms: 2000
  repeat_silence_ms: 1000
  leading_silence_ms: 0
  tail_silence_ms: 2000
  speed: 0.8

dispatch:
  concurrency: 4
  requests_per_second: 5
  max_attempts: 3
  base_backoff: "500ms"
  max_backoff: "5s"
  arena_mb: 256

audio:
  sample_rate: 24000
  channels: 1

library:
  # dir: "~/dictation"
  compress: false
  level: 3

engines:
  edge:
    volume: "+0%"
    pitch: "+0Hz"
    # proxy: "http://127.0.0.1:8080"
    connect_timeout: 10
    receive_timeout: 60
    ffmpeg: "ffmpeg"
    decode_timeout: "15s"
  tencent:
    # credentials are read from DICTATE_TENCENT_SECRET_ID and
    # DICTATE_TENCENT_SECRET_KEY
    region: "ap-guangzhou"
    endpoint: "tts.tencentcloudapi.com"
    volume: 0
    sample_rate: 16000
  mock:
    delay: "0s"
`
