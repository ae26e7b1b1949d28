package config

const (
	defaultBasePath     = "~/.local/share/derivate/files"
	defaultTempDir      = "~/.local/share/derivate/tmp"
	defaultDataDir      = "~/.local/share/derivate/data"
	defaultLogDir       = "~/.local/share/derivate/logs"
	defaultHTTPBind     = "127.0.0.1:7391"
	defaultThresholdMB  = 30
	defaultFFmpeg       = "ffmpeg"
	defaultConvert      = "convert"
	defaultPollInterval = 5
	defaultLogFormat    = "text"
	defaultLogLevel     = "info"
)

// Default returns a Config populated with repository defaults.
//
// The default converter rules mirror the stock mp4/webm ladder: a single
// broadly playable output per main type, written next to the originals
// under its own subfolder.
func Default() Config {
	return Config{
		Paths: Paths{
			BasePath: defaultBasePath,
			TempDir:  defaultTempDir,
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			HTTPBind: defaultHTTPBind,
		},
		Derivatives: Derivatives{
			Enabled:     []string{"audio", "video", "zip", "pdf", "txt"},
			ThresholdMB: defaultThresholdMB,
		},
		Converters: Converters{
			Audio: []ConverterRule{
				{
					Pattern: "mp3/{filename}.mp3",
					Args:    "-c copy -c:a libmp3lame -qscale:a 2",
				},
			},
			Video: []ConverterRule{
				{
					Pattern: "mp4/{filename}.mp4",
					Args:    "-c copy -c:v libx264 -movflags +faststart -filter:v crop='floor(in_w/2)*2:floor(in_h/2)*2' -crf 22 -level 3 -preset medium -tune film -pix_fmt yuv420p",
				},
				{
					Pattern: "webm/{filename}.webm",
					Args:    "-c copy -c:v libvpx-vp9 -crf 30 -b:v 0 -acodec libvorbis -deadline good -pix_fmt yuv420p",
				},
			},
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpeg,
			Convert: defaultConvert,
		},
		Worker: Worker{
			PollInterval: defaultPollInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
