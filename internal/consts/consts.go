package consts

const (
	GRAVITY    = 9.81  // Standard gravity (m/s^2)
	GRAVITY_CM = 981.0 // Standard gravity (cm/s^2)

	// Dyne-cm source spectrum to gravity-seconds
	DYNE_CM_TO_G_SEC = 1e-20 / GRAVITY_CM
)
