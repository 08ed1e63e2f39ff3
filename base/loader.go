package base

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/scimdrift/scimd/schema"
)

// LoadSchemas walks a directory of RFC 7643-shaped JSON files, registering
// each as an additional schema on reg. It is tolerant of individual file
// failures, matching the teacher's directory-loader behavior of warning
// and continuing rather than aborting the whole startup sequence.
func LoadSchemas(reg *schema.Registry, sDirPath string) error {
	dir, err := os.Open(sDirPath)
	if err != nil {
		log.Criticalf("Could not open schema directory %s [%s]", sDirPath, err)
		return err
	}
	defer dir.Close()

	files, err := dir.Readdir(-1)
	if err != nil {
		return err
	}

	count := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), ".json") {
			continue
		}

		data, err := ioutil.ReadFile(filepath.Join(sDirPath, f.Name()))
		if err != nil {
			log.Warningf("Failed to read schema file %s [%s]", f.Name(), err)
			continue
		}

		sc, err := reg.AddSchema(data)
		if err != nil {
			log.Warningf("Failed to load schema from file %s [%s]", f.Name(), err)
			continue
		}

		log.Infof("Loaded schema %s", sc.Id)
		count++
	}

	log.Infof("Loaded %d schemas from %s", count, sDirPath)
	return nil
}

// LoadResTypes walks a directory of resource-type JSON files, registering
// each on reg against the schemas already known to it.
func LoadResTypes(reg *schema.Registry, rtDirPath string) error {
	dir, err := os.Open(rtDirPath)
	if err != nil {
		log.Criticalf("Could not open resourcetypes directory %s [%s]", rtDirPath, err)
		return err
	}
	defer dir.Close()

	files, err := dir.Readdir(-1)
	if err != nil {
		return err
	}

	count := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), ".json") {
			continue
		}

		data, err := ioutil.ReadFile(filepath.Join(rtDirPath, f.Name()))
		if err != nil {
			log.Warningf("Failed to read resourceType file %s [%s]", f.Name(), err)
			continue
		}

		rt, err := reg.AddResourceType(data)
		if err != nil {
			log.Warningf("Failed to load resource type from file %s [%s]", f.Name(), err)
			continue
		}

		log.Infof("Loaded resource type %s", rt.Id)
		count++
	}

	log.Infof("Loaded %d resource types from %s", count, rtDirPath)
	return nil
}
