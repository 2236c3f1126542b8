package caps

func baseOps(b *SetBuilder) *SetBuilder {
	return b.
		Allow(
			OpLen, OpString, OpInt, OpFloat, OpBool,
			OpList, OpMap,
			OpCompare, OpMin, OpMax, OpAbs, OpSum, OpSorted,
			OpRange, OpType,
		).
		Allow(
			OpPrint,
			OpTimeNow,
			OpRandom,
		)
}

// DefaultProfile returns the standard allow-list for untrusted plugins:
// pure computation, output via print, no ambient authority. File, network,
// subprocess and environment access are all absent and must be granted
// explicitly through the security policy flags.
func DefaultProfile() []string {
	return baseOps(NewBuilder()).Build()
}

// FileAllowProfile is the default profile plus the guarded open-file
// capability. The sandbox still routes every open through the policy check.
func FileAllowProfile() []string {
	return baseOps(NewBuilder()).Allow(OpOpenFile).Build()
}

// NetworkAllowProfile is the default profile plus outbound dialing.
func NetworkAllowProfile() []string {
	return baseOps(NewBuilder()).Allow(OpDial).Build()
}
