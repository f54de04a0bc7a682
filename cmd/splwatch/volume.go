package main

import (
	"fmt"
	"log/slog"
)

// resolveVolumeSetting builds the session's fixed volume setting from the
// configured source. Call after Config.Validate.
func resolveVolumeSetting(cfg *Config, logger *slog.Logger) (VolumeSetting, error) {
	law := cfg.TaperLaw()

	switch VolumeSource(cfg.Volume.Source) {
	case VolumeSourceCamillaDSP:
		client, err := NewCamillaDSPClient(cfg.CamillaDSP.WsURL, logger, cfg.CamillaDSP.TimeoutMS)
		if err != nil {
			return VolumeSetting{}, err
		}
		defer client.Close()

		db, err := client.GetVolume()
		if err != nil {
			return VolumeSetting{}, err
		}
		vol := VolumeSettingFromAttenuation(db, law)
		logger.Info("volume read from CamillaDSP", "attenuation_db", db, "equivalent_percent", vol.Percent)
		return vol, nil

	case VolumeSourcePercent:
		return NewVolumeSetting(cfg.Volume.Percent, law), nil

	default:
		return VolumeSetting{}, fmt.Errorf("%w: unknown volume source %q", ErrInputFormat, cfg.Volume.Source)
	}
}
