package build

// Keys written into the child build environment. The compiler wrapper in
// the Android tree reads the ANDROID_LLVM_* ones.
const (
	AllowNinjaEnvKey           = "ALLOW_NINJA_ENV"
	StderrRedirectKey          = "ANDROID_LLVM_STDERR_REDIRECT"
	PrebuiltCompilerPathKey    = "ANDROID_LLVM_PREBUILT_COMPILER_PATH"
	DisabledWarningsKey        = "ANDROID_LLVM_FALLBACK_DISABLED_WARNINGS"
	PrebuiltsVersionKey        = "LLVM_PREBUILTS_VERSION"
	ReleaseVersionKey          = "LLVM_RELEASE_VERSION"
	WithTidyKey                = "WITH_TIDY"
	DefaultGlobalTidyChecksKey = "DEFAULT_GLOBAL_TIDY_CHECKS"
	DistDirKey                 = "DIST_DIR"
	ProductOutKey              = "ANDROID_PRODUCT_OUT"
)

// DevPrebuiltsVersion selects the prebuilts/clang/host/<tag>/clang-dev link.
const DevPrebuiltsVersion = "clang-dev"

// DisabledWarnings masks warnings introduced by a compiler rebase that the
// platform has not fixed yet.
var DisabledWarnings = []string{
	"-Wno-error=defaulted-function-deleted",
	"-Wno-error=string-plus-int",
	"-fsplit-lto-unit",
	"-Wno-error=alloca",
	"-Wno-error=c99-designator",
	"-Wno-error=dangling-gsl",
	"-Wno-error=implicit-fallthrough",
	"-Wno-error=implicit-int-float-conversion",
	"-Wno-error=incomplete-setjmp-declaration",
	"-Wno-error=pointer-compare",
	"-Wno-error=reorder-init-list",
	"-Wno-error=bitwise-conditional-parentheses",
	"-Wno-error=bool-operation",
	"-Wno-error=deprecated-volatile",
	"-Wno-error=int-in-bool-context",
	"-Wno-error=invalid-partial-specialization",
	"-Wno-error=sizeof-array-div",
	"-Wno-error=tautological-bitwise-compare",
	"-Wno-error=tautological-overlap-compare",
	"-Wno-error=deprecated-copy",
	"-Wno-error=range-loop-construct",
	"-Wno-error=misleading-indentation",
	"-Wno-error=zero-as-null-pointer-constant",
	"-Wno-error=deprecated-anon-enum-enum-conversion",
	"-Wno-error=deprecated-enum-enum-conversion",
}

// DefaultTidyChecks enables everything except the noisy check families.
var DefaultTidyChecks = []string{
	"*",
	"-readability-*",
	"-google-readability-*",
	"-google-runtime-references",
	"-cppcoreguidelines-*",
	"-modernize-*",
	"-clang-analyzer-alpha*",
}

// DistModules is the module set of a normal build.
var DistModules = []string{"dist"}

// ProfileModules is the narrow set built while collecting profiles: enough
// to exercise the compiler on C and C++ without producing an image.
var ProfileModules = []string{"libc", "libLLVM_android-host64"}
