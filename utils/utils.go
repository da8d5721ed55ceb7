package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"imagededup/config"
	apperrors "imagededup/errors"
)

// Commands recognized on the command line
var commands = []string{"analyze", "search", "serve"}

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments(argv []string) map[string]string {
	args := make(map[string]string)

	// First, identify the command
	command := ""
	commandIndex := -1
	for i := 1; i < len(argv) && command == ""; i++ {
		for _, c := range commands {
			if argv[i] == c {
				command = c
				commandIndex = i
				break
			}
		}
	}

	if command != "" {
		args["command"] = command
	}

	// Process all arguments, skipping the command
	for i := 1; i < len(argv); i++ {
		if i == commandIndex {
			continue
		}

		arg := argv[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			flagName := strings.TrimPrefix(parts[0], "--")
			args[flagName] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			// Check if this is a boolean flag (no value)
			if i+1 >= len(argv) || strings.HasPrefix(argv[i+1], "--") || i+1 == commandIndex {
				args[flagName] = "true"
			} else {
				// The next argument is the value
				args[flagName] = argv[i+1]
				i++ // Skip the value in the next iteration
			}
		}
	}

	return args
}

// ApplyArguments maps analysis flags onto params
func ApplyArguments(params *config.AnalysisParams, args map[string]string) error {
	intFlags := map[string]*int{
		"dhash-threshold":     &params.DHashThreshold,
		"phash-threshold":     &params.PHashThreshold,
		"ahash-threshold":     &params.AHashThreshold,
		"prefilter-threshold": &params.Prefilter.Threshold,
		"working-size":        &params.WorkingSize,
		"workers":             &params.Workers,
	}
	for name, dst := range intFlags {
		v, ok := args[name]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return apperrors.NewInvalidParameterError(fmt.Sprintf("invalid --%s value %q", name, v), err)
		}
		*dst = n
	}

	boolFlags := map[string]*bool{
		"pure-color":  &params.DetectPureColor,
		"rotation":    &params.DetectRotation,
		"recursive":   &params.RecursiveScan,
		"prefilter":   &params.Prefilter.Enabled,
		"cross-scale": &params.CrossScale,
	}
	for name, dst := range boolFlags {
		if v, ok := args[name]; ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return apperrors.NewInvalidParameterError(fmt.Sprintf("invalid --%s value %q", name, v), err)
			}
			*dst = b
		}
	}
	// --no-rotation and friends read better on the command line
	for name, dst := range boolFlags {
		if _, ok := args["no-"+name]; ok {
			*dst = false
		}
	}

	if v, ok := args["pure-color-std"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return apperrors.NewInvalidParameterError(fmt.Sprintf("invalid --pure-color-std value %q", v), err)
		}
		params.PureColorStdThreshold = f
	}
	if v, ok := args["angles"]; ok {
		angles, err := config.ParseIntList(v)
		if err != nil {
			return err
		}
		params.Angles = angles
	}
	if v, ok := args["scales"]; ok {
		scales, err := config.ParseFloatList(v)
		if err != nil {
			return err
		}
		params.Scales = scales
	}
	if v, ok := args["hash-sizes"]; ok {
		sizes, err := config.ParseIntList(v)
		if err != nil {
			return err
		}
		params.HashSizes = sizes
	}
	if v, ok := args["algorithms"]; ok {
		params.Algorithms = config.ParseAlgorithmList(v)
	}
	if v, ok := args["provider"]; ok {
		params.Provider = v
	}
	return nil
}

// GetDefaultDatabasePath returns the default path for the database file
func GetDefaultDatabasePath() string {
	// Get the executable path
	exePath, err := os.Executable()
	if err != nil {
		// Fallback to current directory if executable path can't be determined
		return "signatures.db"
	}

	// Return the default database path in the same directory
	return filepath.Join(filepath.Dir(exePath), "signatures.db")
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s analyze --folder=PATH [--recursive=BOOL] [--config=FILE] [--database=PATH] [--no-cache] [--output=FILE] [--format=text|json|csv] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s search --image=PATH [--database=PATH] [--config=FILE] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s serve [--config=FILE] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --folder              : Path to folder containing images to analyze\n")
	fmt.Printf("  --image               : Path to query image for search\n")
	fmt.Printf("  --database            : Path to signature cache (default: %s)\n", GetDefaultDatabasePath())
	fmt.Printf("  --no-cache            : Do not read or write the signature cache\n")
	fmt.Printf("  --config              : YAML file with analysis parameters\n")
	fmt.Printf("  --output              : Write the report to a file instead of stdout\n")
	fmt.Printf("  --format              : Report format: text, json or csv (default: text)\n")
	fmt.Printf("  --dhash-threshold     : Maximum dHash distance (default: 8)\n")
	fmt.Printf("  --phash-threshold     : Maximum pHash distance (default: 2)\n")
	fmt.Printf("  --ahash-threshold     : Maximum aHash distance (default: 2)\n")
	fmt.Printf("  --angles              : Rotation angles, e.g. 0,90,180,270\n")
	fmt.Printf("  --scales              : Scale factors, e.g. 0.75,1,1.25\n")
	fmt.Printf("  --hash-sizes          : Hash sizes, e.g. 8,16\n")
	fmt.Printf("  --algorithms          : Enabled algorithms, e.g. dhash,phash,ahash\n")
	fmt.Printf("  --no-rotation         : Disable rotation detection\n")
	fmt.Printf("  --no-pure-color       : Disable uniform-color exclusion\n")
	fmt.Printf("  --no-prefilter        : Run the full comparison for every pair\n")
	fmt.Printf("  --cross-scale         : Compare across scales as well as angles\n")
	fmt.Printf("  --provider            : Hash provider: auto, native or pure (default: auto)\n")
	fmt.Printf("  --workers             : Worker goroutines (default: 3/4 of the CPUs)\n")
	fmt.Printf("  --debug               : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile             : Specify custom log file path (default: imagededup.log)\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s analyze --folder=/path/to/images --format=csv --output=dupes.csv\n", os.Args[0])
	fmt.Printf("  %s search --image=/path/to/query.jpg\n", os.Args[0])
}
