package constants

const (
	// StringsEmpty - a empty space
	StringsEmpty = ""

	// StringsPKG - the package abbreviation
	StringsPKG = "pkg"

	// StringsFunc - the function abbreviation
	StringsFunc = "func"
)
