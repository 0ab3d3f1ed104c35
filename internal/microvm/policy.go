package microvm

import (
	"strings"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// CheckNetwork enforces NetworkPolicy against an outbound host, per the
// authoritative semantics of spec §4.5: Denied rejects everything; AllowList
// requires a suffix match against an allowed host; DenyList is the
// complement; Full always permits.
func CheckNetwork(policy NetworkPolicy, host string) error {
	switch policy.Kind {
	case NetworkDenied, "":
		return ccoserr.Newf(ccoserr.KindResource, "network policy denied: host %q", host).
			WithFields(map[string]any{"operation": "network", "host": host})
	case NetworkFull:
		return nil
	case NetworkAllowList:
		if hostMatchesAny(host, policy.Hosts) {
			return nil
		}
		return ccoserr.Newf(ccoserr.KindResource, "network policy denied: host %q not in allow list", host).
			WithFields(map[string]any{"operation": "network", "host": host})
	case NetworkDenyList:
		if hostMatchesAny(host, policy.Hosts) {
			return ccoserr.Newf(ccoserr.KindResource, "network policy denied: host %q in deny list", host).
				WithFields(map[string]any{"operation": "network", "host": host})
		}
		return nil
	default:
		return ccoserr.Newf(ccoserr.KindResource, "unknown network policy kind %q", policy.Kind)
	}
}

func hostMatchesAny(host string, allowed []string) bool {
	for _, candidate := range allowed {
		if host == candidate || strings.HasSuffix(host, "."+candidate) {
			return true
		}
	}
	return false
}

// FileOp identifies the kind of filesystem access a capability requests.
type FileOp string

const (
	FileOpRead  FileOp = "read"
	FileOpWrite FileOp = "write"
)

// CheckFilesystem enforces FilesystemPolicy against a path access of the
// given kind, per the authoritative semantics of spec §4.5: write
// capabilities fail on ReadOnly; read capabilities fail if the target path
// is outside any configured allowed path.
func CheckFilesystem(policy FilesystemPolicy, op FileOp, path string) error {
	switch policy.Kind {
	case FilesystemNone, "":
		return ccoserr.Newf(ccoserr.KindResource, "filesystem policy denied: no access configured for %q", path).
			WithFields(map[string]any{"operation": "filesystem", "path": path})
	case FilesystemFull:
		return nil
	case FilesystemReadOnly:
		if op == FileOpWrite {
			return ccoserr.Newf(ccoserr.KindResource, "filesystem policy denied: write to %q under ReadOnly policy", path).
				WithFields(map[string]any{"operation": "filesystem", "path": path})
		}
		if !pathMatchesAny(path, policy.Paths) {
			return ccoserr.Newf(ccoserr.KindResource, "filesystem policy denied: %q outside allowed read paths", path).
				WithFields(map[string]any{"operation": "filesystem", "path": path})
		}
		return nil
	case FilesystemReadWrite:
		if !pathMatchesAny(path, policy.Paths) {
			return ccoserr.Newf(ccoserr.KindResource, "filesystem policy denied: %q outside allowed paths", path).
				WithFields(map[string]any{"operation": "filesystem", "path": path})
		}
		return nil
	default:
		return ccoserr.Newf(ccoserr.KindResource, "unknown filesystem policy kind %q", policy.Kind)
	}
}

func pathMatchesAny(path string, allowed []string) bool {
	for _, prefix := range allowed {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}
