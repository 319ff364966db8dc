// Package trajio is a thin layer over goChem for the trajectory and
// structure formats this tool moves around: DCD trajectories and PDB
// structure files. All parsing and writing is goChem's; this package only
// fixes the conventions (topology checks, segment naming) used by the
// rebuild driver.
package trajio

import (
	"fmt"

	chem "github.com/rmera/gochem"
	"github.com/rmera/gochem/traj/dcd"
	v3 "github.com/rmera/gochem/v3"
)

// Coarse is a coarse-grained trajectory held fully in memory: the topology
// read from a PDB file plus every frame of a DCD file. It is loaded once
// and never mutated during a run.
type Coarse struct {
	Mol    *chem.Molecule
	Frames []*v3.Matrix
}

// FrameCount returns the number of frames, including the reference frame 0.
func (c *Coarse) FrameCount() int {
	return len(c.Frames)
}

// NAtoms returns the number of coarse-grained particles per frame.
func (c *Coarse) NAtoms() int {
	return c.Mol.Len()
}

// LoadCoarse reads a DCD trajectory with its PDB topology. The atom counts
// of the two files must agree.
func LoadCoarse(dcdPath, pdbPath string) (*Coarse, error) {
	mol, err := chem.PDBFileRead(pdbPath, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology %s: %w", pdbPath, err)
	}
	traj, err := dcd.New(dcdPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trajectory %s: %w", dcdPath, err)
	}
	if traj.Len() != mol.Len() {
		return nil, fmt.Errorf("atom count mismatch: trajectory %s has %d, topology %s has %d",
			dcdPath, traj.Len(), pdbPath, mol.Len())
	}
	frames, err := readAll(traj)
	if err != nil {
		return nil, fmt.Errorf("failed to read trajectory %s: %w", dcdPath, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("trajectory %s has no frames", dcdPath)
	}
	return &Coarse{Mol: mol, Frames: frames}, nil
}

// WriteFramePDB writes a single coordinate set as a PDB file using mol as
// the topology.
func WriteFramePDB(path string, coords *v3.Matrix, mol chem.Atomer) error {
	if err := chem.PDBFileWrite(path, coords, mol, nil); err != nil {
		return fmt.Errorf("failed to write frame %s: %w", path, err)
	}
	return nil
}

// LoadPDB reads an all-atom structure written by cgback. The structure must
// contain at least one coordinate set.
func LoadPDB(path string) (*chem.Molecule, error) {
	mol, err := chem.PDBFileRead(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read structure %s: %w", path, err)
	}
	if len(mol.Coords) == 0 {
		return nil, fmt.Errorf("structure %s has no coordinates", path)
	}
	return mol, nil
}

// readAll drains a DCD reader into per-frame coordinate matrices.
func readAll(traj *dcd.DCDObj) ([]*v3.Matrix, error) {
	var frames []*v3.Matrix
	for {
		frame := v3.Zeros(traj.Len())
		err := traj.Next(frame)
		if err != nil {
			if _, ok := err.(chem.LastFrameError); ok {
				break
			}
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
