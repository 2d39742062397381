package traci

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

// Conn is a single TraCI session with a running SUMO instance. A Conn is
// owned by exactly one goroutine; the simulation runner never shares it.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	logger *zap.SugaredLogger
	closed bool
}

// Dial connects to a TraCI server and performs the version handshake.
func Dial(addr string, logger *zap.SugaredLogger) (*Conn, error) {
	netConn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("error connecting to TraCI server at %s: %w", addr, err)
	}

	c := &Conn{
		conn:   netConn,
		reader: bufio.NewReader(netConn),
		writer: bufio.NewWriter(netConn),
		logger: logger,
	}

	version, err := c.getVersion()
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("TraCI handshake failed: %w", err)
	}
	logger.Infow("Connected to TraCI server",
		"addr", addr,
		"apiVersion", version.APIVersion,
		"server", version.Server)

	return c, nil
}

// Close tells SUMO to shut down and closes the socket
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	// Best effort: the process may already be gone
	if _, err := c.request(cmdClose, nil); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}

// SetOrder declares this client's position among multiple TraCI clients.
// The backend is always the only client but SUMO still expects the call.
func (c *Conn) SetOrder(order int32) error {
	p := newPacket()
	p.writeInt(order)
	_, err := c.request(cmdSetOrder, p.bytes())
	return err
}

// SimulationStep advances the simulation by one step
func (c *Conn) SimulationStep() error {
	p := newPacket()
	p.writeDouble(0) // 0 = exactly one step
	_, err := c.request(cmdSimStep, p.bytes())
	return err
}

// SimulationTime returns the current simulation time in seconds
func (c *Conn) SimulationTime() (float64, error) {
	pl, err := c.getVariable(cmdGetSimVariable, varTime, "")
	if err != nil {
		return 0, err
	}
	return pl.readTypedDouble()
}

// AddRoute registers a route over the given edges
func (c *Conn) AddRoute(routeID string, edges []string) error {
	p := newPacket()
	p.writeByte(varAdd)
	p.writeString(routeID)
	p.writeTypedStringList(edges)
	_, err := c.request(cmdSetRouteVariable, p.bytes())
	return err
}

// RouteIDs lists all registered route IDs
func (c *Conn) RouteIDs() ([]string, error) {
	pl, err := c.getVariable(cmdGetRouteVariable, varIDList, "")
	if err != nil {
		return nil, err
	}
	return pl.readTypedStringList()
}

// AddVehicle inserts a vehicle of the given type on an existing route.
// The insertion parameters follow the defaults the TraCI vehicle.add
// call uses: depart now, first free lane, base position.
func (c *Conn) AddVehicle(vehID, routeID, typeID string) error {
	p := newPacket()
	p.writeByte(varAddFull)
	p.writeString(vehID)
	p.writeCompound(14)
	p.writeTypedString(routeID)
	p.writeTypedString(typeID)
	p.writeTypedString("now")     // depart
	p.writeTypedString("first")   // departLane
	p.writeTypedString("base")    // departPos
	p.writeTypedString("0")       // departSpeed
	p.writeTypedString("current") // arrivalLane
	p.writeTypedString("max")     // arrivalPos
	p.writeTypedString("current") // arrivalSpeed
	p.writeTypedString("")        // fromTaz
	p.writeTypedString("")        // toTaz
	p.writeTypedString("")        // line
	p.writeTypedInt(0)            // personCapacity
	p.writeTypedInt(0)            // personNumber
	_, err := c.request(cmdSetVehicleVariable, p.bytes())
	return err
}

// RemoveVehicle takes a vehicle out of the simulation
func (c *Conn) RemoveVehicle(vehID string) error {
	p := newPacket()
	p.writeByte(varRemove)
	p.writeString(vehID)
	p.writeTypedByte(removeVaporized)
	_, err := c.request(cmdSetVehicleVariable, p.bytes())
	return err
}

// VehicleIDs lists the vehicles currently in the simulation
func (c *Conn) VehicleIDs() ([]string, error) {
	pl, err := c.getVariable(cmdGetVehicleVariable, varIDList, "")
	if err != nil {
		return nil, err
	}
	return pl.readTypedStringList()
}

// LaneID returns the lane a vehicle currently occupies
func (c *Conn) LaneID(vehID string) (string, error) {
	pl, err := c.getVariable(cmdGetVehicleVariable, varLaneID, vehID)
	if err != nil {
		return "", err
	}
	return pl.readTypedString()
}

// LanePosition returns a vehicle's position along its lane in meters
func (c *Conn) LanePosition(vehID string) (float64, error) {
	pl, err := c.getVariable(cmdGetVehicleVariable, varLanePosition, vehID)
	if err != nil {
		return 0, err
	}
	return pl.readTypedDouble()
}

// ElectricityConsumption returns a vehicle's consumption in Wh/s for the
// last step. Non-electric vehicles produce a TraCI error.
func (c *Conn) ElectricityConsumption(vehID string) (float64, error) {
	pl, err := c.getVariable(cmdGetVehicleVariable, varElectricityConsumption, vehID)
	if err != nil {
		return 0, err
	}
	return pl.readTypedDouble()
}

// VehicleParameter reads a device parameter such as
// "device.battery.actualBatteryCapacity"
func (c *Conn) VehicleParameter(vehID, key string) (string, error) {
	p := newPacket()
	p.writeByte(varParameter)
	p.writeString(vehID)
	p.writeTypedString(key)
	pl, err := c.roundtrip(cmdGetVehicleVariable, p.bytes())
	if err != nil {
		return "", err
	}
	if err := pl.consumeResultHeader(cmdGetVehicleVariable); err != nil {
		return "", err
	}
	return pl.readTypedString()
}

// SetVehicleParameter writes a device parameter
func (c *Conn) SetVehicleParameter(vehID, key, value string) error {
	p := newPacket()
	p.writeByte(varParameter)
	p.writeString(vehID)
	p.writeCompound(2)
	p.writeTypedString(key)
	p.writeTypedString(value)
	_, err := c.request(cmdSetVehicleVariable, p.bytes())
	return err
}

// DispatchTaxi sends a taxi to serve the given reservations
func (c *Conn) DispatchTaxi(vehID string, reservationIDs []string) error {
	p := newPacket()
	p.writeByte(cmdTaxiDispatch)
	p.writeString(vehID)
	p.writeTypedStringList(reservationIDs)
	_, err := c.request(cmdSetVehicleVariable, p.bytes())
	return err
}

// PersonIDs lists the persons currently in the simulation
func (c *Conn) PersonIDs() ([]string, error) {
	pl, err := c.getVariable(cmdGetPersonVariable, varIDList, "")
	if err != nil {
		return nil, err
	}
	return pl.readTypedStringList()
}

// PersonVehicle returns the ID of the vehicle a person is riding in, or
// an empty string while they wait
func (c *Conn) PersonVehicle(personID string) (string, error) {
	pl, err := c.getVariable(cmdGetPersonVariable, varPersonVehicle, personID)
	if err != nil {
		return "", err
	}
	return pl.readTypedString()
}

// AddPerson places a person on an edge at the given depart time
func (c *Conn) AddPerson(personID, edgeID string, pos, depart float64) error {
	p := newPacket()
	p.writeByte(varAdd)
	p.writeString(personID)
	p.writeCompound(4)
	p.writeTypedString("DEFAULT_PEDTYPE")
	p.writeTypedString(edgeID)
	p.writeTypedDouble(depart)
	p.writeTypedDouble(pos)
	_, err := c.request(cmdSetPersonVariable, p.bytes())
	return err
}

// AppendDrivingStage adds a taxi ride stage to a person's plan. SUMO
// requires exactly four stage parameters; the stop ID stays empty since
// riders are dropped along the edge.
func (c *Conn) AppendDrivingStage(personID, toEdge, lines string) error {
	p := newPacket()
	p.writeByte(varAppendStage)
	p.writeString(personID)
	p.writeCompound(4)
	p.writeTypedInt(3) // stage type: driving
	p.writeTypedString(toEdge)
	p.writeTypedString(lines)
	p.writeTypedString("") // stop ID
	_, err := c.request(cmdSetPersonVariable, p.bytes())
	return err
}

// TaxiReservations returns pending ride reservations. stateFilter 0
// returns all reservations regardless of state.
func (c *Conn) TaxiReservations(stateFilter int32) ([]Reservation, error) {
	p := newPacket()
	p.writeByte(varTaxiReservations)
	p.writeString("")
	p.writeTypedInt(stateFilter)
	pl, err := c.roundtrip(cmdGetPersonVariable, p.bytes())
	if err != nil {
		return nil, err
	}
	if err := pl.consumeResultHeader(cmdGetPersonVariable); err != nil {
		return nil, err
	}

	if err := pl.expectType(typeCompound); err != nil {
		return nil, err
	}
	count, err := pl.readInt()
	if err != nil {
		return nil, err
	}

	reservations := make([]Reservation, 0, count)
	for i := int32(0); i < count; i++ {
		var r Reservation
		if err := pl.expectType(typeCompound); err != nil {
			return nil, err
		}
		fields, err := pl.readInt()
		if err != nil {
			return nil, err
		}
		if r.ID, err = pl.readTypedString(); err != nil {
			return nil, err
		}
		if r.Persons, err = pl.readTypedStringList(); err != nil {
			return nil, err
		}
		if r.Group, err = pl.readTypedString(); err != nil {
			return nil, err
		}
		if r.FromEdge, err = pl.readTypedString(); err != nil {
			return nil, err
		}
		if r.ToEdge, err = pl.readTypedString(); err != nil {
			return nil, err
		}
		if r.DepartPos, err = pl.readTypedDouble(); err != nil {
			return nil, err
		}
		if r.ArrivalPos, err = pl.readTypedDouble(); err != nil {
			return nil, err
		}
		if r.Depart, err = pl.readTypedDouble(); err != nil {
			return nil, err
		}
		if r.ReservationTime, err = pl.readTypedDouble(); err != nil {
			return nil, err
		}
		// Newer servers append a state field and possibly more
		for f := int32(9); f < fields; f++ {
			if err := pl.skipValue(); err != nil {
				return nil, err
			}
		}
		reservations = append(reservations, r)
	}
	return reservations, nil
}

// getVersion performs the handshake exchange
func (c *Conn) getVersion() (*Version, error) {
	pl, err := c.roundtrip(cmdGetVersion, nil)
	if err != nil {
		return nil, err
	}
	if _, err := pl.consumeCommandHeader(cmdGetVersion); err != nil {
		return nil, err
	}
	v := &Version{}
	if v.APIVersion, err = pl.readInt(); err != nil {
		return nil, err
	}
	if v.Server, err = pl.readString(); err != nil {
		return nil, err
	}
	return v, nil
}

// getVariable issues a plain variable retrieval and positions the
// returned payload at the typed value
func (c *Conn) getVariable(domain, variable byte, objectID string) (*payload, error) {
	p := newPacket()
	p.writeByte(variable)
	p.writeString(objectID)
	pl, err := c.roundtrip(domain, p.bytes())
	if err != nil {
		return nil, err
	}
	if err := pl.consumeResultHeader(domain); err != nil {
		return nil, err
	}
	return pl, nil
}

// request sends one command and checks its status response. The payload
// cursor is returned positioned after the status, at any result command.
func (c *Conn) request(cmd byte, content []byte) (*payload, error) {
	pl, err := c.roundtrip(cmd, content)
	return pl, err
}

// roundtrip writes a framed command, reads the reply message, and
// verifies the leading status response
func (c *Conn) roundtrip(cmd byte, content []byte) (*payload, error) {
	msg := frameMessage(frameCommand(cmd, content))
	if _, err := c.writer.Write(msg); err != nil {
		return nil, fmt.Errorf("error writing command 0x%02x: %w", cmd, err)
	}
	if err := c.writer.Flush(); err != nil {
		return nil, fmt.Errorf("error flushing command 0x%02x: %w", cmd, err)
	}

	pl, err := c.readMessage()
	if err != nil {
		return nil, err
	}

	statusCmd, err := pl.consumeCommandHeader(cmd)
	if err != nil {
		return nil, err
	}
	result, err := pl.readByte()
	if err != nil {
		return nil, err
	}
	description, err := pl.readString()
	if err != nil {
		return nil, err
	}
	if result != statusOK {
		return nil, &Error{Command: statusCmd, Result: result, Description: description}
	}
	return pl, nil
}

// readMessage reads one length-prefixed reply off the socket
func (c *Conn) readMessage() (*payload, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.reader, header[:]); err != nil {
		return nil, fmt.Errorf("error reading message header: %w", err)
	}
	total := binary.BigEndian.Uint32(header[:])
	if total < 4 {
		return nil, fmt.Errorf("invalid message length %d", total)
	}
	body := make([]byte, total-4)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("error reading message body: %w", err)
	}
	return newPayload(body), nil
}

// consumeCommandHeader reads a command's length and identifier and
// verifies the identifier matches
func (p *payload) consumeCommandHeader(want byte) (byte, error) {
	length, err := p.readByte()
	if err != nil {
		return 0, err
	}
	if length == 0 {
		// Extended length frame
		if _, err := p.readInt(); err != nil {
			return 0, err
		}
	}
	cmd, err := p.readByte()
	if err != nil {
		return 0, err
	}
	if cmd != want {
		return cmd, fmt.Errorf("unexpected command 0x%02x in response, want 0x%02x", cmd, want)
	}
	return cmd, nil
}

// consumeResultHeader steps over the result command header of a variable
// retrieval: command id, variable id and object id, leaving the cursor
// at the typed value
func (p *payload) consumeResultHeader(domain byte) error {
	if _, err := p.consumeCommandHeader(responseFor(domain)); err != nil {
		return err
	}
	if _, err := p.readByte(); err != nil { // variable
		return err
	}
	if _, err := p.readString(); err != nil { // object id
		return err
	}
	return nil
}
