// Package contracts holds recorded response bodies from Microsoft Graph and
// the Microsoft identity platform. Tests feed them to the real clients so a
// schema drift shows up as a parse failure rather than an empty feed.
package contracts

// GraphUserContract is GET /me.
const GraphUserContract = `{
	"@odata.context": "https://graph.microsoft.com/v1.0/$metadata#users/$entity",
	"businessPhones": [],
	"displayName": "Pat Kennedy",
	"givenName": "Pat",
	"surname": "Kennedy",
	"userPrincipalName": "pat@example.com",
	"id": "48d31887-5fad-4d73-a9f5-3c356e68a038"
}`

// GraphEventsContract is GET /me/events with $select=subject,organizer,start,end.
const GraphEventsContract = `{
	"@odata.context": "https://graph.microsoft.com/v1.0/$metadata#users('pat')/events(subject,organizer,start,end)",
	"value": [
		{
			"@odata.etag": "W/\"ZlnW4RIAV06KYYwlrfNZvQAAKGWwbw==\"",
			"id": "AAMkAGIAAAoZDOFAAA=",
			"subject": "Family dinner",
			"organizer": {"emailAddress": {"name": "Pat Kennedy", "address": "pat@example.com"}},
			"start": {"dateTime": "2015-11-11T18:00:00.0000000", "timeZone": "Pacific Standard Time"},
			"end": {"dateTime": "2015-11-11T20:00:00.0000000", "timeZone": "Pacific Standard Time"}
		}
	]
}`

// GraphChildrenContract is GET /me/drive/items/{id}/children for a year folder.
const GraphChildrenContract = `{
	"@odata.context": "https://graph.microsoft.com/v1.0/$metadata#users('pat')/drive/items('F00')/children",
	"value": [
		{
			"createdDateTime": "2012-07-04T19:10:00Z",
			"id": "F00!1235",
			"name": "notes",
			"size": 0,
			"folder": {"childCount": 0}
		},
		{
			"@microsoft.graph.downloadUrl": "https://public.by.files.1drv.com/y4m...",
			"createdDateTime": "2012-07-04T19:20:30Z",
			"cTag": "adDpGMDA3MjY",
			"eTag": "aRjAwNzI2",
			"id": "F00!1234",
			"lastModifiedDateTime": "2012-07-04T19:20:30Z",
			"name": "fireworks.mp4",
			"size": 73409181,
			"description": "Fourth of July",
			"file": {"mimeType": "video/mp4", "hashes": {"sha1Hash": "A1B2"}},
			"video": {"bitrate": 16007000, "duration": 36703, "height": 1080, "width": 1920, "audioChannels": 2},
			"parentReference": {"driveId": "f00", "driveType": "personal", "id": "F00!100", "path": "/drive/root:/Videos/2012-07-04"}
		}
	]
}`

// GraphCreateLinkContract is POST /me/drive/items/{id}/createLink for an
// anonymous embed link.
const GraphCreateLinkContract = `{
	"id": "123ABC",
	"roles": ["read"],
	"link": {
		"type": "embed",
		"scope": "anonymous",
		"webHtml": "<iframe src=\"https://onedrive.live.com/embed?resid=F00%211234&authkey=!AbC\"></iframe>",
		"webUrl": "https://onedrive.live.com/embed?resid=F00%211234&authkey=!AbC"
	}
}`

// GraphPermissionsContract is GET /me/drive/items/{id}/permissions. The
// owner grant has no link.
const GraphPermissionsContract = `{
	"value": [
		{"id": "aTowIy5mfG1lbWJlcnNoaXB8cGF0", "roles": ["owner"], "grantedTo": {"user": {"displayName": "Pat Kennedy"}}},
		{"id": "123ABC", "roles": ["read"], "link": {"type": "embed", "scope": "anonymous", "webUrl": "https://onedrive.live.com/embed?resid=F00%211234&authkey=!AbC"}},
		{"id": "456DEF", "roles": ["read"], "link": {"type": "view", "scope": "anonymous", "webUrl": "https://1drv.ms/v/s!AbC"}}
	]
}`

// GraphThumbnailsContract is GET /me/drive/items/{id}/thumbnails.
const GraphThumbnailsContract = `{
	"value": [
		{
			"id": "0",
			"large": {"height": 800, "width": 450, "url": "https://public.by.files.1drv.com/y4m_large?width=450&height=800&cropmode=none"},
			"medium": {"height": 176, "width": 99, "url": "https://public.by.files.1drv.com/y4m_medium?width=99&height=176"},
			"small": {"height": 96, "width": 54, "url": "https://public.by.files.1drv.com/y4m_small?width=54&height=96"}
		}
	]
}`

// GraphThrottledContract is the body Graph sends with a 429.
const GraphThrottledContract = `{
	"error": {
		"code": "activityLimitReached",
		"message": "The app or user has been throttled.",
		"innerError": {"code": "throttledRequest", "date": "2024-01-15T10:00:00", "request-id": "d1f3c1a9"}
	}
}`

// DeviceCodeContract is the devicecode endpoint's response.
const DeviceCodeContract = `{
	"user_code": "FGH4K2LMN",
	"device_code": "DAQABAAEAAAD--DLA3VO7QrddgJg7WevrAgAAAAAAAAA",
	"verification_uri": "https://microsoft.com/devicelogin",
	"expires_in": 900,
	"interval": 1,
	"message": "To sign in, use a web browser to open the page https://microsoft.com/devicelogin and enter the code FGH4K2LMN to authenticate."
}`

// TokenContract is the token endpoint's successful response.
const TokenContract = `{
	"token_type": "Bearer",
	"scope": "User.Read Files.ReadWrite.All",
	"expires_in": 3599,
	"ext_expires_in": 3599,
	"access_token": "EwBwA8l6BAAU",
	"refresh_token": "M.R3_BAY.-CRX"
}`
