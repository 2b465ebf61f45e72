// Command assist talks to the Assist pipelines of a Home Assistant instance.
//
// It runs text through a pipeline, administers pipelines and manages the
// settings file used to reach the instance.
package main
