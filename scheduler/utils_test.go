package scheduler

import "statecheck/generator"

// Descriptors used when testing the schedulers
var descs = []generator.Descriptor{
	{Name: "Add", Weight: 3, Params: []generator.Param{generator.Int("amount", 0, 200), generator.Index("actor", 10)}},
	{Name: "Clear", Weight: 1, Params: []generator.Param{generator.Index("actor", 10)}},
	{Name: "Cancel", Weight: 1},
}
