package avr

// Func identifies one controllable or reported function of a device.
// The set is closed; each dialect's Catalog maps the Funcs it supports to
// their definitions.
type Func int

// Functions shared by every dialect.
const (
	FuncUnknown Func = iota
	FuncConnection
	FuncExpertCommand
	FuncExpertReadingPattern
	FuncExpertReadingResult
	FuncPowerSystem
)

// Receiver main zone.
const (
	FuncMainPower Func = iota + 100
	FuncVolume
	FuncVolumeDB
	FuncVolumeUp
	FuncVolumeDown
	FuncMaximumVolume
	FuncMaximumVolumeDB
	FuncMute
	FuncSelectInput
	FuncSleepTimer
	FuncQuickSelect
	FuncBass
	FuncTreble
	FuncBassUp
	FuncBassDown
	FuncTrebleUp
	FuncTrebleDown
)

// Receiver channel volumes.
const (
	FuncChannelVolumeFrontLeft Func = iota + 200
	FuncChannelVolumeFrontRight
	FuncChannelVolumeCenter
	FuncChannelVolumeSubwoofer
	FuncChannelVolumeSubwooferOne
	FuncChannelVolumeSubwooferTwo
	FuncChannelVolumeSurroundLeft
	FuncChannelVolumeSurroundRight
	FuncChannelVolumeSurroundBackLeft
	FuncChannelVolumeSurroundBackRight
	FuncChannelVolumeSurroundBack
	FuncChannelVolumeFrontHeightLeft
	FuncChannelVolumeFrontHeightRight
	FuncChannelVolumeFrontWideLeft
	FuncChannelVolumeFrontWideRight
)

// Receiver settings, display, info and tuner.
const (
	FuncSurroundMode Func = iota + 300
	FuncToneControl
	FuncDynamicEq
	FuncMultEq
	FuncDynamicVolume
	FuncReferenceLevelOffset
	FuncSubwooferLevel
	FuncSubwooferTwoLevel
	FuncLowFrequencyContainment
	FuncContainmentAmount
	FuncCenterSpread
	FuncDialogLevelAdjust
	FuncDialogLevel
	FuncDialogControl
	FuncSetupMenu
	FuncCursorUp
	FuncCursorDown
	FuncCursorLeft
	FuncCursorRight
	FuncCursorEnter
	FuncCursorReturn
	FuncOutputMonitor
	FuncVideoProcessingMode
	FuncPictureMode
	FuncSpeakerPreset
	FuncDisplayBrightness
	FuncDisplayContent
	FuncFriendlyName
	FuncOnlinePresets
	FuncStationName
	FuncFrequency
	FuncFrequencyUp
	FuncFrequencyDown
)

// Receiver secondary zones (zone2, zone3, ...).
const (
	FuncZonePower Func = iota + 400
	FuncZoneVolume
	FuncZoneVolumeUp
	FuncZoneVolumeDown
	FuncZoneMute
	FuncZoneSelectInput
	FuncZoneSleepTimer
	FuncZoneBass
	FuncZoneTreble
	FuncZoneQuickSelect
)

// Amplifier.
const (
	FuncAmpBrightness Func = iota + 500
	FuncSpeakerOneVolume
	FuncSpeakerTwoVolume
	FuncSpeakerOneMute
	FuncSpeakerTwoMute
	FuncOperationMode
	FuncAmpSelectInput
	FuncTurnOnMode
	FuncTriggerInput
	FuncAudioSignal
)
