package protocol

// Top level keys of every line.
const (
	KeyMethod = "method"
	KeyParams = "params"
)

// Master -> host notifications.
const (
	MethodDebug        = "debug"
	MethodPlaySound    = "playSound"
	MethodPlayOneShot  = "playOneShot"
	MethodUpdateStatus = "updateStatus"
)

// Host -> master commands.
const (
	MethodRestartMaster     = "restartMaster"
	MethodRestartWall       = "restartWall"
	MethodSetTouchThreshold = "setTouchThreshold"
	MethodSetCubeMode       = "setCubeMode"
)

// Parameter names.
const (
	ParamText               = "text"
	ParamSoundName          = "soundName"
	ParamSoundParams        = "soundParams"
	ParamPressedCount       = "pressedCount"
	ParamWalls              = "walls"
	ParamAddress            = "address"
	ParamLastDeliveryStatus = "lastDeliveryStatus"
	ParamWallID             = "wallId"
	ParamTouchThreshold     = "touchThreshold"
	ParamCubeMode           = "cubeMode"
)
