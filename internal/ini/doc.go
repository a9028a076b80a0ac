// Package ini loads cascading settings files and caches the merged result.
//
// # Usage
//
// A Registry hands out one Handle per settings file and root directory:
//
//	reg := ini.NewRegistry(ini.WithLogger(logger), ini.WithCacheDir("var/cache/ini"))
//	site := reg.Instance("site.ini", "settings")
//	if l := site.Variable("SiteSettings", "SiteName"); l.OK() {
//	    fmt.Println(l.Value)
//	}
//
// # File format
//
//	#?ini charset="iso-8859-1"?
//	# full line comment
//	[SiteSettings]
//	SiteName=Example  ## trailing comment
//	Languages[]=eng-GB
//	Languages[]=nor-NO
//	Empty[]
//
// The charset directive is honoured only on the first line of the base
// file.
//
// # Load Order
//
// For settings/site.ini and the override list ["override", "siteaccess"]
// the files are merged in this order, skipping missing ones:
//
//  1. settings/site.ini
//  2. settings/override/site.ini
//  3. settings/override/site.ini.append
//  4. settings/siteaccess/site.ini
//  5. settings/siteaccess/site.ini.append
//
// Every file may be replaced by its zstd packed variant (name + ".zst").
// Plain assignments replace earlier values, Key[]= assignments accumulate.
//
// # Cache
//
// The merged table is stored as CBOR in the cache directory under a
// fingerprint of the input paths. The cache file is used while it is at
// least as new as every input file and carries the current format version.
package ini
