package standard

// ValidOrigins are the host origins trusted without any configuration.
// Entries are hosts (optionally with a port); a leading "*." matches exactly
// one extra label.
var ValidOrigins = []string{
	"teams.microsoft.com",
	"teams.microsoft.us",
	"gov.teams.microsoft.us",
	"dod.teams.microsoft.us",
	"int.teams.microsoft.com",
	"teams.live.com",
	"devspaces.skype.com",
	"ssauth.skype.com",
	"local.teams.live.com",
	"local.teams.live.com:8080",
	"local.teams.office.com",
	"local.teams.office.com:8080",
	"outlook.office.com",
	"outlook-sdf.office.com",
	"outlook.office365.com",
	"outlook-sdf.office365.com",
	"outlook.live.com",
	"outlook-sdf.live.com",
	"*.teams.microsoft.com",
	"*.www.office.com",
	"www.office.com",
	"word.office.com",
	"excel.office.com",
	"powerpoint.office.com",
	"www.officeppe.com",
	"*.www.microsoft365.com",
	"www.microsoft365.com",
	"teams.cloud.microsoft",
	"outlook.cloud.microsoft",
	"m365.cloud.microsoft",
}
